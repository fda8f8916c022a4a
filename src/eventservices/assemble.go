package eventservices

import (
	"fmt"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/pipeline"
	"github.com/optionsflow/optionsflow/src/scoring"
)

// BuildOrchestrator assembles the pipeline for one profile. Passing a nil
// cache gives the orchestrator its own; experiments share one cache between
// profiles so identical fingerprints are computed once.
func BuildOrchestrator(profile ProfileConfig, cache *pipeline.StageCache) (*pipeline.Orchestrator, error) {
	var stages []detectors.Detector

	for _, name := range profile.EnabledDetectors {
		switch name {
		case detectors.VolumeAnomalyDetectorName:
			detector, err := detectors.NewVolumeAnomalyDetector(profile.VolumeAnomaly)
			if err != nil {
				return nil, fmt.Errorf("BuildOrchestrator: %w", err)
			}

			stages = append(stages, detector)

		case detectors.QuotePressureDetectorName:
			detector, err := detectors.NewQuotePressureDetector(profile.QuotePressure)
			if err != nil {
				return nil, fmt.Errorf("BuildOrchestrator: %w", err)
			}

			stages = append(stages, detector)

		case detectors.ExpirationPressureDetectorName:
			detector, err := detectors.NewExpirationPressureDetector(profile.ExpirationPressure)
			if err != nil {
				return nil, fmt.Errorf("BuildOrchestrator: %w", err)
			}

			stages = append(stages, detector)

		default:
			return nil, fmt.Errorf("BuildOrchestrator: unknown detector %q", name)
		}
	}

	scorer, err := scoring.NewScorer(profile.Scorer)
	if err != nil {
		return nil, fmt.Errorf("BuildOrchestrator: %w", err)
	}

	orchestrator, err := pipeline.NewOrchestrator(profile.Pipeline, stages, scorer, cache)
	if err != nil {
		return nil, fmt.Errorf("BuildOrchestrator: %w", err)
	}

	return orchestrator, nil
}
