package eventservices

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/experiment"
	"github.com/optionsflow/optionsflow/src/pipeline"
	"github.com/optionsflow/optionsflow/src/scoring"
)

// ProfileConfig is one complete detector configuration: which detectors run
// and with what thresholds. Two profiles make an experiment.
type ProfileConfig struct {
	Name               string                             `yaml:"name"`
	EnabledDetectors   []string                           `yaml:"enabled_detectors"`
	VolumeAnomaly      detectors.VolumeAnomalyConfig      `yaml:"volume_anomaly"`
	QuotePressure      detectors.QuotePressureConfig      `yaml:"quote_pressure"`
	ExpirationPressure detectors.ExpirationPressureConfig `yaml:"expiration_pressure"`
	Scorer             scoring.ScorerConfig               `yaml:"scorer"`
	Pipeline           pipeline.Config                    `yaml:"pipeline"`
}

type ExperimentYAML struct {
	DurationHours             float64 `yaml:"duration_hours"`
	ComparisonIntervalMinutes float64 `yaml:"comparison_interval_minutes"`
	DegradationFloor          float64 `yaml:"degradation_floor"`
	DegradationIntervals      int     `yaml:"degradation_intervals"`
}

func (e ExperimentYAML) ToConfig() experiment.Config {
	config := experiment.DefaultConfig()

	if e.DurationHours > 0 {
		config.Duration = time.Duration(e.DurationHours * float64(time.Hour))
	}

	if e.ComparisonIntervalMinutes > 0 {
		config.ComparisonInterval = time.Duration(e.ComparisonIntervalMinutes * float64(time.Minute))
	}

	if e.DegradationFloor > 0 {
		config.DegradationFloor = e.DegradationFloor
	}

	if e.DegradationIntervals > 0 {
		config.DegradationIntervals = e.DegradationIntervals
	}

	return config
}

// ScannerConfigYAML is the full configuration file shape.
type ScannerConfigYAML struct {
	Symbol     string         `yaml:"symbol"`
	ProfileA   ProfileConfig  `yaml:"profile_a"`
	ProfileB   *ProfileConfig `yaml:"profile_b,omitempty"`
	Experiment ExperimentYAML `yaml:"experiment"`
}

func DefaultProfileConfig(name string) ProfileConfig {
	return ProfileConfig{
		Name: name,
		EnabledDetectors: []string{
			detectors.VolumeAnomalyDetectorName,
			detectors.QuotePressureDetectorName,
			detectors.ExpirationPressureDetectorName,
		},
		VolumeAnomaly:      detectors.DefaultVolumeAnomalyConfig(),
		QuotePressure:      detectors.DefaultQuotePressureConfig(),
		ExpirationPressure: detectors.DefaultExpirationPressureConfig(),
		Scorer:             scoring.DefaultScorerConfig(),
		Pipeline:           pipeline.DefaultConfig(),
	}
}

// LoadScannerConfig reads and validates the scanner configuration. Any
// invalid threshold or weight surfaces here, before a run is scheduled.
func LoadScannerConfig(configInDir string) (*ScannerConfigYAML, error) {
	payload, err := os.ReadFile(configInDir)
	if err != nil {
		return nil, fmt.Errorf("LoadScannerConfig: failed to read %s: %w", configInDir, err)
	}

	config := &ScannerConfigYAML{
		ProfileA: DefaultProfileConfig("baseline"),
	}

	if err := yaml.Unmarshal(payload, config); err != nil {
		return nil, fmt.Errorf("LoadScannerConfig: failed to unmarshal %s: %w", configInDir, err)
	}

	if config.Symbol == "" {
		return nil, eventmodels.NewConfigurationError("symbol", "underlying symbol is required")
	}

	if err := validateProfile(config.ProfileA); err != nil {
		return nil, fmt.Errorf("LoadScannerConfig: profile %s: %w", config.ProfileA.Name, err)
	}

	if config.ProfileB != nil {
		if err := validateProfile(*config.ProfileB); err != nil {
			return nil, fmt.Errorf("LoadScannerConfig: profile %s: %w", config.ProfileB.Name, err)
		}
	}

	return config, nil
}

func validateProfile(profile ProfileConfig) error {
	if len(profile.EnabledDetectors) == 0 {
		return eventmodels.NewConfigurationError("enabled_detectors", "at least one detector is required")
	}

	for _, name := range profile.EnabledDetectors {
		switch name {
		case detectors.VolumeAnomalyDetectorName, detectors.QuotePressureDetectorName, detectors.ExpirationPressureDetectorName:
		default:
			return eventmodels.NewConfigurationError("enabled_detectors", fmt.Sprintf("unknown detector %q", name))
		}
	}

	if err := profile.VolumeAnomaly.Validate(); err != nil {
		return err
	}

	if err := profile.QuotePressure.Validate(); err != nil {
		return err
	}

	if err := profile.ExpirationPressure.Validate(); err != nil {
		return err
	}

	if err := profile.Scorer.Validate(); err != nil {
		return err
	}

	return nil
}

// Criteria flattens a profile's thresholds into the versioned artifact
// shape so historical runs stay comparable after tuning.
func Criteria(profile ProfileConfig) eventmodels.RunCriteriaDTO {
	return eventmodels.RunCriteriaDTO{
		MinVolOIRatio:      profile.VolumeAnomaly.MinVolOIRatio,
		MinVolume:          profile.VolumeAnomaly.MinVolume,
		MinDollarSize:      profile.VolumeAnomaly.MinDollarSize,
		ContractMultiplier: profile.VolumeAnomaly.ContractMultiplier,
		PressureWindowMin:  profile.QuotePressure.WindowMinutes,
		MinBidSize:         profile.QuotePressure.MinBidSize,
		MinPressureRatio:   profile.QuotePressure.MinPressureRatio,
		Weights:            profile.Scorer.Weights.AsMap(),
		MinEV:              profile.Scorer.MinEV,
		MinProbability:     profile.Scorer.MinProbability,
		MaxRisk:            profile.Scorer.MaxRisk,
		MinRiskReward:      profile.Scorer.MinRiskReward,
	}
}
