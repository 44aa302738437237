package collector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

func contentWith(practices, tips, examples int) *guide.ExtractedContent {
	content := &guide.ExtractedContent{}
	for i := 0; i < practices; i++ {
		content.BestPractices = append(content.BestPractices, fmt.Sprintf("practice number %d", i))
	}
	for i := 0; i < tips; i++ {
		content.Tips = append(content.Tips, fmt.Sprintf("tip number %d", i))
	}
	for i := 0; i < examples; i++ {
		content.Examples = append(content.Examples, guide.Example{Output: fmt.Sprintf("example %d", i)})
	}
	return content
}

func TestScoreEmptyContent(t *testing.T) {
	assert.InDelta(t, 0.3, Score(&guide.ExtractedContent{}), 1e-9)
}

func TestScoreAccumulates(t *testing.T) {
	// 2 practices, 3 tips, 1 example: 0.3 + 0.2 + 0.15 + 0.05
	assert.InDelta(t, 0.7, Score(contentWith(2, 3, 1)), 1e-9)
}

func TestScoreBucketCaps(t *testing.T) {
	// Each bucket saturates independently: 0.3 + 0.3 + 0.2 + 0.2
	assert.InDelta(t, 1.0, Score(contentWith(50, 50, 50)), 1e-9)
	// Practices cap at 3 items worth of weight
	assert.InDelta(t, Score(contentWith(3, 0, 0)), Score(contentWith(10, 0, 0)), 1e-9)
}

func TestScoreMonotonic(t *testing.T) {
	prev := Score(&guide.ExtractedContent{})
	for i := 1; i <= 12; i++ {
		next := Score(contentWith(i, i, i))
		assert.GreaterOrEqual(t, next, prev, "score dropped when adding items at volume %d", i)
		prev = next
	}
}

func TestValidateEmptyContentIsInvalid(t *testing.T) {
	g := &guide.Guide{EntityID: "gpt-4o", Title: "GPT-4o Prompt Guide"}

	v := Validate(g)

	assert.False(t, v.Valid)
	assert.Contains(t, v.Issues, "all content buckets are empty")
}

func TestValidateWarnings(t *testing.T) {
	g := &guide.Guide{
		EntityID:   "gpt-4o",
		Confidence: 0.8,
		Content: guide.ExtractedContent{
			BestPractices: []string{"Write clear prompts", "write clear prompts", "short"},
			Tips:          []string{"Iterate on wording"},
		},
	}

	v := Validate(g)

	assert.True(t, v.Valid)
	assert.Contains(t, v.Warnings, "guide has no title")
	assert.Contains(t, v.Warnings, `duplicate best practice survived dedup: "write clear prompts"`)
	assert.Contains(t, v.Warnings, `best practice too short: "short"`)
}

func TestValidateDuplicateExamples(t *testing.T) {
	g := &guide.Guide{
		EntityID:   "gpt-4o",
		Title:      "GPT-4o Prompt Guide",
		Confidence: 0.8,
		Content: guide.ExtractedContent{
			Tips: []string{"Iterate on wording"},
			Examples: []guide.Example{
				{Input: "Setup", Output: "User: summarize this text."},
				{Input: "Other", Output: "user: Summarize This Text."},
			},
		},
	}

	v := Validate(g)

	assert.True(t, v.Valid)
	assert.Contains(t, v.Warnings, `duplicate example survived dedup: "user: Summarize This Text."`)
}

func TestValidateLowConfidence(t *testing.T) {
	g := &guide.Guide{
		EntityID:   "gpt-4o",
		Title:      "GPT-4o Prompt Guide",
		Confidence: 0.35,
		Content: guide.ExtractedContent{
			Tips: []string{"Iterate on wording"},
		},
	}

	v := Validate(g)

	assert.True(t, v.Valid)
	assert.Contains(t, v.Warnings, "low confidence: 0.35")
}

func TestApplyValidationPenalty(t *testing.T) {
	clean := guide.Validation{Valid: true}
	assert.InDelta(t, 0.7, ApplyValidationPenalty(0.7, clean), 1e-9)

	warned := guide.Validation{Valid: true, Warnings: []string{"a", "b", "c"}}
	// One penalty regardless of warning count
	assert.InDelta(t, 0.5, ApplyValidationPenalty(0.7, warned), 1e-9)
	// Never below zero
	assert.InDelta(t, 0.0, ApplyValidationPenalty(0.1, warned), 1e-9)
}
