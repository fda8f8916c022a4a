package detectors

import (
	"context"
	"fmt"
	"math"

	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/utils"
)

const ExpirationPressureDetectorName = "expiration_pressure"

// ExpirationPressureDetector models dealer-hedging mechanical flow that
// intensifies as expiry nears: strikes close to the money with heavy open
// interest force hedge rebalancing that accelerates into the close.
type ExpirationPressureDetector struct {
	config  ExpirationPressureConfig
	version string
}

func NewExpirationPressureDetector(config ExpirationPressureConfig) (*ExpirationPressureDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewExpirationPressureDetector: %w", err)
	}

	return &ExpirationPressureDetector{
		config:  config,
		version: configVersion(ExpirationPressureDetectorName, config),
	}, nil
}

func (d *ExpirationPressureDetector) Name() string {
	return ExpirationPressureDetectorName
}

func (d *ExpirationPressureDetector) ConfigVersion() string {
	return d.version
}

// assignmentProbability decays with distance to the strike and grows as the
// remaining time shrinks: inverse in relative distance, inverse-square in
// remaining minutes.
func (d *ExpirationPressureDetector) assignmentProbability(distance, currentPrice, minutesToExpiry float64) float64 {
	distanceRatio := distance / currentPrice * d.config.DistanceDecay
	timeRatio := minutesToExpiry / d.config.TimeScaleMinutes

	probability := 1.0 / ((1 + distanceRatio) * (1 + timeRatio*timeRatio))

	return math.Min(probability, 1.0)
}

func (d *ExpirationPressureDetector) Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, DetectorStats, error) {
	var signals []eventmodels.Signal
	var stats DetectorStats

	if currentPrice <= 0 {
		return nil, stats, fmt.Errorf("ExpirationPressureDetector: Detect: current price must be positive, found %v", currentPrice)
	}

	for _, contract := range snapshot.Contracts {
		stats.RecordsProcessed++

		if err := contract.Validate(); err != nil {
			stats.RecordsSkipped++
			continue
		}

		if contract.OpenInterest == 0 {
			continue
		}

		minutesToExpiry := utils.MinutesToExpiry(snapshot.CapturedAt, contract.Expiration)
		if minutesToExpiry == 0 || minutesToExpiry > d.config.MaxMinutesToExpiry {
			continue
		}

		distance := math.Abs(contract.Strike - currentPrice)
		probability := d.assignmentProbability(distance, currentPrice, minutesToExpiry)

		pressure := float64(contract.OpenInterest) * probability / (minutesToExpiry * minutesToExpiry)
		if pressure <= d.config.PressureThreshold {
			continue
		}

		// hedging flow pushes toward the strike: price below strike pins
		// upward for calls, above pins downward for puts
		direction := eventmodels.DirectionLong
		if contract.Strike < currentPrice {
			direction = eventmodels.DirectionShort
		}

		signals = append(signals, eventmodels.Signal{
			Strike:         contract.Strike,
			OptionType:     contract.OptionType,
			Direction:      direction,
			Confidence:     eventmodels.ConfidenceModerate,
			MetricValue:    pressure,
			DollarSize:     float64(contract.OpenInterest) * contract.LastPrice * quoteContractSize,
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
