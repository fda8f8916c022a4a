package eventmodels

import "fmt"

type Confidence string

const (
	ConfidenceModerate Confidence = "moderate"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceExtreme  Confidence = "extreme"
)

// Rank orders confidence tiers so they can be compared and sorted.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceModerate:
		return 1
	case ConfidenceHigh:
		return 2
	case ConfidenceVeryHigh:
		return 3
	case ConfidenceExtreme:
		return 4
	default:
		return 0
	}
}

func (c Confidence) Validate() error {
	if c.Rank() == 0 {
		return fmt.Errorf("Confidence: Validate: invalid confidence tier: %s", c)
	}

	return nil
}

// ConfidenceTier pairs a metric threshold with the tier it maps to. Tier
// tables are evaluated top-down, highest threshold first, so adding a new
// tier is a data change.
type ConfidenceTier struct {
	Threshold  float64    `yaml:"threshold" json:"threshold"`
	Confidence Confidence `yaml:"confidence" json:"confidence"`
}

// ClassifyConfidence walks an ordered tier table and returns the tier of the
// first threshold the metric meets. Ties break toward the higher tier. The
// second return value is false when the metric is below every threshold.
func ClassifyConfidence(tiers []ConfidenceTier, metric float64) (Confidence, bool) {
	for _, tier := range tiers {
		if metric >= tier.Threshold {
			return tier.Confidence, true
		}
	}

	return "", false
}
