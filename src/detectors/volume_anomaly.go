package detectors

import (
	"context"
	"fmt"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

const VolumeAnomalyDetectorName = "volume_anomaly"

// VolumeAnomalyDetector flags contracts whose session volume is abnormally
// large relative to open interest, a proxy for fresh institutional
// positioning rather than existing inventory churn.
type VolumeAnomalyDetector struct {
	config  VolumeAnomalyConfig
	version string
}

func NewVolumeAnomalyDetector(config VolumeAnomalyConfig) (*VolumeAnomalyDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewVolumeAnomalyDetector: %w", err)
	}

	return &VolumeAnomalyDetector{
		config:  config,
		version: configVersion(VolumeAnomalyDetectorName, config),
	}, nil
}

func (d *VolumeAnomalyDetector) Name() string {
	return VolumeAnomalyDetectorName
}

func (d *VolumeAnomalyDetector) ConfigVersion() string {
	return d.version
}

func (d *VolumeAnomalyDetector) Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, DetectorStats, error) {
	var signals []eventmodels.Signal
	var stats DetectorStats

	for _, contract := range snapshot.Contracts {
		stats.RecordsProcessed++

		if err := contract.Validate(); err != nil {
			stats.RecordsSkipped++
			continue
		}

		// Contracts with no recorded activity on either side carry no
		// information and are excluded outright.
		if contract.Volume == 0 && contract.OpenInterest == 0 {
			continue
		}

		// Zero open interest must not divide; treating it as 1 keeps the
		// ratio finite and conservative for small volume.
		openInterest := contract.OpenInterest
		if openInterest == 0 {
			openInterest = 1
		}

		ratio := float64(contract.Volume) / float64(openInterest)
		if ratio < d.config.MinVolOIRatio {
			continue
		}

		if contract.Volume < d.config.MinVolume {
			continue
		}

		dollarSize := float64(contract.Volume) * contract.LastPrice * d.config.ContractMultiplier
		if dollarSize < d.config.MinDollarSize {
			continue
		}

		confidence, ok := eventmodels.ClassifyConfidence(d.config.Tiers, ratio)
		if !ok {
			continue
		}

		direction := eventmodels.DirectionLong
		if contract.OptionType == eventmodels.OptionTypePut {
			direction = eventmodels.DirectionShort
		}

		signals = append(signals, eventmodels.Signal{
			Strike:         contract.Strike,
			OptionType:     contract.OptionType,
			Direction:      direction,
			Confidence:     confidence,
			MetricValue:    ratio,
			DollarSize:     dollarSize,
			TargetPrice:    contract.Strike,
			Volume:         contract.Volume,
			OpenInterest:   contract.OpenInterest,
			Expiration:     contract.Expiration,
			DetectorSource: d.Name(),
			CreatedAt:      snapshot.CapturedAt,
		})
	}

	stats.SignalsEmitted = len(signals)

	return signals, stats, nil
}
