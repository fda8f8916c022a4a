package eventmodels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence_Rank(t *testing.T) {
	assert.Greater(t, ConfidenceExtreme.Rank(), ConfidenceVeryHigh.Rank())
	assert.Greater(t, ConfidenceVeryHigh.Rank(), ConfidenceHigh.Rank())
	assert.Greater(t, ConfidenceHigh.Rank(), ConfidenceModerate.Rank())
	assert.Equal(t, 0, Confidence("nonsense").Rank())
}

func TestClassifyConfidence(t *testing.T) {
	tiers := []ConfidenceTier{
		{Threshold: 50, Confidence: ConfidenceExtreme},
		{Threshold: 30, Confidence: ConfidenceVeryHigh},
		{Threshold: 10, Confidence: ConfidenceHigh},
	}

	t.Run("first met threshold wins", func(t *testing.T) {
		confidence, ok := ClassifyConfidence(tiers, 35)
		assert.True(t, ok)
		assert.Equal(t, ConfidenceVeryHigh, confidence)
	})

	t.Run("boundary goes to the higher tier", func(t *testing.T) {
		confidence, ok := ClassifyConfidence(tiers, 50)
		assert.True(t, ok)
		assert.Equal(t, ConfidenceExtreme, confidence)

		confidence, ok = ClassifyConfidence(tiers, 30)
		assert.True(t, ok)
		assert.Equal(t, ConfidenceVeryHigh, confidence)
	})

	t.Run("below every threshold", func(t *testing.T) {
		_, ok := ClassifyConfidence(tiers, 9.99)
		assert.False(t, ok)
	})
}
