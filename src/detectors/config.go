package detectors

import (
	"fmt"

	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/utils"
)

// Threshold defaults are empirically chosen starting points, kept as
// configuration rather than compiled-in constants so they can be calibrated
// per underlying.

type VolumeAnomalyConfig struct {
	MinVolOIRatio      float64                      `yaml:"min_vol_oi_ratio" json:"min_vol_oi_ratio"`
	MinVolume          int64                        `yaml:"min_volume" json:"min_volume"`
	MinDollarSize      float64                      `yaml:"min_dollar_size" json:"min_dollar_size"`
	ContractMultiplier float64                      `yaml:"contract_multiplier" json:"contract_multiplier"`
	Tiers              []eventmodels.ConfidenceTier `yaml:"tiers" json:"tiers"`
}

func DefaultVolumeAnomalyConfig() VolumeAnomalyConfig {
	return VolumeAnomalyConfig{
		MinVolOIRatio:      10,
		MinVolume:          100,
		MinDollarSize:      1_000_000,
		ContractMultiplier: 20,
		Tiers: []eventmodels.ConfidenceTier{
			{Threshold: 50, Confidence: eventmodels.ConfidenceExtreme},
			{Threshold: 30, Confidence: eventmodels.ConfidenceVeryHigh},
			{Threshold: 10, Confidence: eventmodels.ConfidenceHigh},
		},
	}
}

func (c VolumeAnomalyConfig) Validate() error {
	if c.MinVolOIRatio <= 0 {
		return eventmodels.NewConfigurationError("min_vol_oi_ratio", fmt.Sprintf("must be positive, found %v", c.MinVolOIRatio))
	}

	if c.MinVolume <= 0 {
		return eventmodels.NewConfigurationError("min_volume", fmt.Sprintf("must be positive, found %v", c.MinVolume))
	}

	if c.MinDollarSize <= 0 {
		return eventmodels.NewConfigurationError("min_dollar_size", fmt.Sprintf("must be positive, found %v", c.MinDollarSize))
	}

	if c.ContractMultiplier <= 0 {
		return eventmodels.NewConfigurationError("contract_multiplier", fmt.Sprintf("must be positive, found %v", c.ContractMultiplier))
	}

	if len(c.Tiers) == 0 {
		return eventmodels.NewConfigurationError("tiers", "at least one confidence tier is required")
	}

	for i := 1; i < len(c.Tiers); i++ {
		if c.Tiers[i].Threshold >= c.Tiers[i-1].Threshold {
			return eventmodels.NewConfigurationError("tiers", "tier thresholds must be strictly descending")
		}
	}

	for _, tier := range c.Tiers {
		if err := tier.Confidence.Validate(); err != nil {
			return eventmodels.NewConfigurationError("tiers", err.Error())
		}
	}

	return nil
}

type QuotePressureConfig struct {
	WindowMinutes    int                          `yaml:"pressure_window_minutes" json:"pressure_window_minutes"`
	MinBidSize       int64                        `yaml:"min_bid_size" json:"min_bid_size"`
	MinPressureRatio float64                      `yaml:"min_pressure_ratio" json:"min_pressure_ratio"`
	Tiers            []eventmodels.ConfidenceTier `yaml:"tiers" json:"tiers"`
}

func DefaultQuotePressureConfig() QuotePressureConfig {
	return QuotePressureConfig{
		WindowMinutes:    5,
		MinBidSize:       500,
		MinPressureRatio: 3.0,
		Tiers: []eventmodels.ConfidenceTier{
			{Threshold: 10, Confidence: eventmodels.ConfidenceVeryHigh},
			{Threshold: 5, Confidence: eventmodels.ConfidenceHigh},
			{Threshold: 3, Confidence: eventmodels.ConfidenceModerate},
		},
	}
}

func (c QuotePressureConfig) Validate() error {
	if c.WindowMinutes <= 0 {
		return eventmodels.NewConfigurationError("pressure_window_minutes", fmt.Sprintf("must be positive, found %v", c.WindowMinutes))
	}

	if c.MinBidSize <= 0 {
		return eventmodels.NewConfigurationError("min_bid_size", fmt.Sprintf("must be positive, found %v", c.MinBidSize))
	}

	if c.MinPressureRatio <= 1 {
		return eventmodels.NewConfigurationError("min_pressure_ratio", fmt.Sprintf("must be greater than 1, found %v", c.MinPressureRatio))
	}

	if len(c.Tiers) == 0 {
		return eventmodels.NewConfigurationError("tiers", "at least one confidence tier is required")
	}

	for i := 1; i < len(c.Tiers); i++ {
		if c.Tiers[i].Threshold >= c.Tiers[i-1].Threshold {
			return eventmodels.NewConfigurationError("tiers", "tier thresholds must be strictly descending")
		}
	}

	return nil
}

type ExpirationPressureConfig struct {
	PressureThreshold float64 `yaml:"pressure_threshold" json:"pressure_threshold"`
	DistanceDecay     float64 `yaml:"distance_decay" json:"distance_decay"`
	TimeScaleMinutes  float64 `yaml:"time_scale_minutes" json:"time_scale_minutes"`
	MaxMinutesToExpiry float64 `yaml:"max_minutes_to_expiry" json:"max_minutes_to_expiry"`
}

func DefaultExpirationPressureConfig() ExpirationPressureConfig {
	return ExpirationPressureConfig{
		PressureThreshold:  5.0,
		DistanceDecay:      50,
		TimeScaleMinutes:   390,
		MaxMinutesToExpiry: 2 * 390, // two trading sessions
	}
}

func (c ExpirationPressureConfig) Validate() error {
	if c.PressureThreshold <= 0 {
		return eventmodels.NewConfigurationError("pressure_threshold", fmt.Sprintf("must be positive, found %v", c.PressureThreshold))
	}

	if c.DistanceDecay <= 0 {
		return eventmodels.NewConfigurationError("distance_decay", fmt.Sprintf("must be positive, found %v", c.DistanceDecay))
	}

	if c.TimeScaleMinutes <= 0 {
		return eventmodels.NewConfigurationError("time_scale_minutes", fmt.Sprintf("must be positive, found %v", c.TimeScaleMinutes))
	}

	if c.MaxMinutesToExpiry <= 0 {
		return eventmodels.NewConfigurationError("max_minutes_to_expiry", fmt.Sprintf("must be positive, found %v", c.MaxMinutesToExpiry))
	}

	return nil
}

func configVersion(name string, cfg interface{}) string {
	version, err := utils.HashStruct(cfg)
	if err != nil {
		// gob can encode every config struct in this package; a failure here
		// is a programming error
		panic(fmt.Sprintf("%s: failed to hash config: %v", name, err))
	}

	return version
}
