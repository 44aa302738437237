package collector

import (
	"fmt"
	"strings"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

// Scoring weights. Confidence starts at the base and grows with content
// volume, capped per bucket and clamped to [0, 1].
const (
	scoreBase          = 0.3
	practiceWeight     = 0.1
	practiceScoreCap   = 0.3
	tipWeight          = 0.05
	tipScoreCap        = 0.2
	exampleWeight      = 0.05
	exampleScoreCap    = 0.2
	warningPenalty     = 0.2
	minPracticeLength  = 10
	lowConfidenceFloor = 0.5
)

// Score computes a [0,1] confidence estimate from extracted volume.
// More valid items never lower the score.
func Score(content *guide.ExtractedContent) float64 {
	score := scoreBase

	vol := content.Volume()
	score += capped(float64(vol.Practices)*practiceWeight, practiceScoreCap)
	score += capped(float64(vol.Tips)*tipWeight, tipScoreCap)
	score += capped(float64(vol.Examples)*exampleWeight, exampleScoreCap)

	return clamp01(score)
}

// Validate runs integrity checks over a guide. Issues mark it invalid;
// warnings are soft and only cost confidence.
func Validate(g *guide.Guide) guide.Validation {
	v := guide.Validation{Valid: true}

	if g.Content.Empty() {
		v.Valid = false
		v.Issues = append(v.Issues, "all content buckets are empty")
	}

	if strings.TrimSpace(g.Title) == "" {
		v.Warnings = append(v.Warnings, "guide has no title")
	}

	if dup := firstDuplicate(g.Content.BestPractices); dup != "" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("duplicate best practice survived dedup: %q", dup))
	}
	if dup := firstDuplicate(g.Content.Tips); dup != "" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("duplicate tip survived dedup: %q", dup))
	}
	if dup := firstDuplicateExample(g.Content.Examples); dup != "" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("duplicate example survived dedup: %q", dup))
	}

	for _, practice := range g.Content.BestPractices {
		if len(practice) < minPracticeLength {
			v.Warnings = append(v.Warnings, fmt.Sprintf("best practice too short: %q", practice))
		}
	}

	if g.Confidence < lowConfidenceFloor {
		v.Warnings = append(v.Warnings, fmt.Sprintf("low confidence: %.2f", g.Confidence))
	}

	return v
}

// ApplyValidationPenalty lowers confidence by the fixed penalty when any
// warnings were raised. The penalty applies once regardless of count.
func ApplyValidationPenalty(confidence float64, v guide.Validation) float64 {
	if len(v.Warnings) == 0 {
		return confidence
	}
	return clamp01(confidence - warningPenalty)
}

// firstDuplicate returns the first case-insensitive duplicate in items,
// or "" when the list is clean. A surviving duplicate signals an
// extraction bug upstream.
func firstDuplicate(items []string) string {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			return item
		}
		seen[key] = true
	}
	return ""
}

// firstDuplicateExample is the example-bucket variant, keyed on the
// example body the same way dedupeExamples keys it.
func firstDuplicateExample(examples []guide.Example) string {
	seen := make(map[string]bool, len(examples))
	for _, ex := range examples {
		key := strings.ToLower(ex.Output)
		if seen[key] {
			return ex.Output
		}
		seen[key] = true
	}
	return ""
}

func capped(value, limit float64) float64 {
	if value > limit {
		return limit
	}
	return value
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
