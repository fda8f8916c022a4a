package scoring

import (
	"fmt"
	"math"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

const weightSumTolerance = 1e-9

// FactorWeights controls the contribution of each factor to the expected
// value. Weights must sum to 1.0; anything else is a configuration error
// surfaced before any run starts.
type FactorWeights struct {
	OIFactor       float64 `yaml:"oi_factor" json:"oi_factor"`
	VolumeFactor   float64 `yaml:"vol_factor" json:"vol_factor"`
	PCRFactor      float64 `yaml:"pcr_factor" json:"pcr_factor"`
	DistanceFactor float64 `yaml:"distance_factor" json:"distance_factor"`
}

func DefaultFactorWeights() FactorWeights {
	return FactorWeights{
		OIFactor:       0.3,
		VolumeFactor:   0.3,
		PCRFactor:      0.2,
		DistanceFactor: 0.2,
	}
}

func (w FactorWeights) Validate() error {
	for name, weight := range w.AsMap() {
		if weight < 0 {
			return eventmodels.NewConfigurationError("weights", fmt.Sprintf("%s must be non-negative, found %v", name, weight))
		}
	}

	sum := w.OIFactor + w.VolumeFactor + w.PCRFactor + w.DistanceFactor
	if math.Abs(sum-1.0) > weightSumTolerance {
		return eventmodels.NewConfigurationError("weights", fmt.Sprintf("must sum to 1.0, found %v", sum))
	}

	return nil
}

func (w FactorWeights) AsMap() map[string]float64 {
	return map[string]float64{
		"oi_factor":       w.OIFactor,
		"vol_factor":      w.VolumeFactor,
		"pcr_factor":      w.PCRFactor,
		"distance_factor": w.DistanceFactor,
	}
}
