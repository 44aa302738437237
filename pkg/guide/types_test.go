package guide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministic(t *testing.T) {
	g := &Guide{
		Title:       "GPT-4 Prompt Guide",
		Description: "How to prompt GPT-4",
		Content: ExtractedContent{
			BestPractices: []string{"Be specific about the desired output format."},
			Tips:          []string{"You should keep prompts short."},
		},
	}

	first, err := g.ComputeHash()
	require.NoError(t, err)
	require.Len(t, first, 64) // hex sha256

	second, err := g.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeHashIgnoresNonPayloadFields(t *testing.T) {
	a := &Guide{Title: "Guide", Content: ExtractedContent{Tips: []string{"You should test prompts."}}}
	b := &Guide{Title: "Guide", Content: ExtractedContent{Tips: []string{"You should test prompts."}}}

	// Version, confidence, and source do not participate in the hash.
	b.Version = 7
	b.Confidence = 0.9
	b.SourcePrimary = "https://example.com/guide"

	hashA, err := a.ComputeHash()
	require.NoError(t, err)
	hashB, err := b.ComputeHash()
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestComputeHashChangesWithContent(t *testing.T) {
	a := &Guide{Title: "Guide", Content: ExtractedContent{Tips: []string{"You should test prompts."}}}
	b := &Guide{Title: "Guide", Content: ExtractedContent{Tips: []string{"You should version prompts."}}}

	hashA, err := a.ComputeHash()
	require.NoError(t, err)
	hashB, err := b.ComputeHash()
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestContentVolume(t *testing.T) {
	content := &ExtractedContent{
		BestPractices: []string{"a", "b"},
		Tips:          []string{"c"},
		Examples:      []Example{{Input: "in", Output: "out"}},
	}

	vol := content.Volume()
	assert.Equal(t, 2, vol.Practices)
	assert.Equal(t, 1, vol.Tips)
	assert.Equal(t, 1, vol.Examples)
	assert.Equal(t, 4, vol.Total())
	assert.False(t, content.Empty())

	var empty *ExtractedContent
	assert.Equal(t, 0, empty.Volume().Total())

	richer := ContentVolume{Practices: 5}
	assert.True(t, richer.Richer(vol))
	assert.False(t, vol.Richer(richer))
	assert.False(t, vol.Richer(vol)) // strict
}

func TestGuideValidate(t *testing.T) {
	g := &Guide{}
	assert.Error(t, g.Validate())

	g.EntityID = "gpt-4"
	assert.Error(t, g.Validate(), "needs a title or content")

	g.Title = "GPT-4 Guide"
	assert.NoError(t, g.Validate())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobCancelled.Terminal())
}
