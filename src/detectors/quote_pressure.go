package detectors

import (
	"context"
	"fmt"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

const QuotePressureDetectorName = "quote_pressure"

// option contracts settle 100 shares per contract
const quoteContractSize = 100

// QuotePressureDetector reads the quote-update window captured on a
// snapshot and flags instruments whose top-of-book sizes are persistently
// one-sided. Bid-dominant pressure maps to LONG, ask-dominant to SHORT.
type QuotePressureDetector struct {
	config  QuotePressureConfig
	version string
}

func NewQuotePressureDetector(config QuotePressureConfig) (*QuotePressureDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewQuotePressureDetector: %w", err)
	}

	return &QuotePressureDetector{
		config:  config,
		version: configVersion(QuotePressureDetectorName, config),
	}, nil
}

func (d *QuotePressureDetector) Name() string {
	return QuotePressureDetectorName
}

func (d *QuotePressureDetector) ConfigVersion() string {
	return d.version
}

type pressureReading struct {
	pressure   float64
	direction  eventmodels.Direction
	dollarSize float64
	update     eventmodels.QuoteUpdate
}

func (d *QuotePressureDetector) Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, DetectorStats, error) {
	var stats DetectorStats

	// strongest qualifying reading per instrument; later event time wins
	// ties so reruns stay deterministic
	best := make(map[string]pressureReading)
	var order []string

	for _, update := range snapshot.Quotes {
		stats.RecordsProcessed++

		if err := update.Validate(); err != nil {
			stats.RecordsSkipped++
			continue
		}

		// pressure is undefined without both sides quoted
		if update.BidSize == 0 || update.AskSize == 0 {
			continue
		}

		var reading pressureReading

		bidPressure := float64(update.BidSize) / float64(update.AskSize)
		askPressure := float64(update.AskSize) / float64(update.BidSize)

		if update.BidSize >= d.config.MinBidSize && bidPressure >= d.config.MinPressureRatio {
			reading = pressureReading{
				pressure:   bidPressure,
				direction:  eventmodels.DirectionLong,
				dollarSize: float64(update.BidSize) * update.BidPrice * quoteContractSize,
				update:     update,
			}
		} else if update.AskSize >= d.config.MinBidSize && askPressure >= d.config.MinPressureRatio {
			reading = pressureReading{
				pressure:   askPressure,
				direction:  eventmodels.DirectionShort,
				dollarSize: float64(update.AskSize) * update.AskPrice * quoteContractSize,
				update:     update,
			}
		} else {
			continue
		}

		current, found := best[update.InstrumentID]
		if !found {
			order = append(order, update.InstrumentID)
		}

		if !found || reading.pressure > current.pressure ||
			(reading.pressure == current.pressure && reading.update.EventTime.After(current.update.EventTime)) {
			best[update.InstrumentID] = reading
		}
	}

	var signals []eventmodels.Signal

	for _, instrumentID := range order {
		reading := best[instrumentID]

		components, err := eventmodels.NewOptionSymbolComponents(eventmodels.OptionSymbol(instrumentID))
		if err != nil {
			// quotes for instruments we cannot resolve to a contract are
			// counted as skipped, not fatal
			stats.RecordsSkipped++
			continue
		}

		optionType := eventmodels.OptionTypeCall
		if components.OptionType == "P" {
			optionType = eventmodels.OptionTypePut
		}

		confidence, ok := eventmodels.ClassifyConfidence(d.config.Tiers, reading.pressure)
		if !ok {
			continue
		}

		signals = append(signals, eventmodels.Signal{
			Strike:         components.StrikePrice,
			OptionType:     optionType,
			Direction:      reading.direction,
			Confidence:     confidence,
			MetricValue:    reading.pressure,
			DollarSize:     reading.dollarSize,
			TargetPrice:    components.StrikePrice,
			Volume:         reading.update.BidSize + reading.update.AskSize,
			OpenInterest:   0,
			Expiration:     components.Expiration,
			DetectorSource: d.Name(),
			CreatedAt:      snapshot.CapturedAt,
		})
	}

	stats.SignalsEmitted = len(signals)

	return signals, stats, nil
}
