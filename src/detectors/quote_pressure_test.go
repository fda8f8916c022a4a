package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

func TestQuotePressureDetector(t *testing.T) {
	ctx := context.Background()
	eventTime := time.Date(2026, 3, 13, 15, 29, 0, 0, time.UTC)

	// NDX call, strike 21100, expiring 2026-03-13
	const instrument = "NDX260313C21100000"
	const putInstrument = "NDX260313P20800000"

	detector, err := NewQuotePressureDetector(DefaultQuotePressureConfig())
	require.NoError(t, err)

	t.Run("bid dominant maps to long", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: instrument, BidSize: 1500, AskSize: 300, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
		})

		signals, stats, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		assert.Equal(t, 1, stats.RecordsProcessed)
		require.Len(t, signals, 1)

		signal := signals[0]
		assert.Equal(t, eventmodels.DirectionLong, signal.Direction)
		assert.Equal(t, 21100.0, signal.Strike)
		assert.Equal(t, eventmodels.OptionTypeCall, signal.OptionType)
		assert.InDelta(t, 5.0, signal.MetricValue, 1e-9)
		assert.Equal(t, eventmodels.ConfidenceHigh, signal.Confidence)
		assert.Equal(t, 1500*125.5*100, signal.DollarSize)
		assert.Equal(t, snapshot.CapturedAt, signal.CreatedAt)
	})

	t.Run("ask dominant maps to short symmetrically", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: putInstrument, BidSize: 200, AskSize: 2000, BidPrice: 89.5, AskPrice: 90.0, EventTime: eventTime},
		})

		signals, _, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		require.Len(t, signals, 1)

		signal := signals[0]
		assert.Equal(t, eventmodels.DirectionShort, signal.Direction)
		assert.Equal(t, eventmodels.OptionTypePut, signal.OptionType)
		assert.InDelta(t, 10.0, signal.MetricValue, 1e-9)
		assert.Equal(t, eventmodels.ConfidenceVeryHigh, signal.Confidence)
		assert.Equal(t, 2000*90.0*100, signal.DollarSize)
	})

	t.Run("balanced book emits nothing", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: instrument, BidSize: 900, AskSize: 400, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
		})

		signals, _, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		assert.Empty(t, signals)
	})

	t.Run("one sided book undefined", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: instrument, BidSize: 1500, AskSize: 0, BidPrice: 125.5, AskPrice: 0, EventTime: eventTime},
		})

		signals, stats, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		assert.Empty(t, signals)
		assert.Equal(t, 0, stats.RecordsSkipped)
	})

	t.Run("size floor filters small books", func(t *testing.T) {
		// ratio qualifies but 90 contracts is retail noise
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: instrument, BidSize: 90, AskSize: 10, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
		})

		signals, _, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		assert.Empty(t, signals)
	})

	t.Run("strongest reading per instrument wins", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: instrument, BidSize: 1500, AskSize: 300, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
			{InstrumentID: instrument, BidSize: 2400, AskSize: 200, BidPrice: 125.6, AskPrice: 126.1, EventTime: eventTime.Add(time.Minute)},
		})

		signals, _, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		require.Len(t, signals, 1)
		assert.InDelta(t, 12.0, signals[0].MetricValue, 1e-9)
	})

	t.Run("unresolvable instrument counted as skipped", func(t *testing.T) {
		snapshot := newTestSnapshot(t, nil, []eventmodels.QuoteUpdate{
			{InstrumentID: "garbage", BidSize: 1500, AskSize: 300, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
			{InstrumentID: instrument, BidSize: 1500, AskSize: 300, BidPrice: 125.5, AskPrice: 126.0, EventTime: eventTime},
		})

		signals, stats, err := detector.Detect(ctx, snapshot, 21054.50)
		assert.NoError(t, err)
		assert.Len(t, signals, 1)
		assert.Equal(t, 1, stats.RecordsSkipped)
	})
}

func TestNewQuotePressureDetector_InvalidConfig(t *testing.T) {
	config := DefaultQuotePressureConfig()
	config.MinPressureRatio = 1.0

	_, err := NewQuotePressureDetector(config)
	assert.Error(t, err)
}

func TestQuoteWindowTracker(t *testing.T) {
	base := time.Date(2026, 3, 13, 15, 0, 0, 0, time.UTC)

	quote := func(id string, at time.Time) eventmodels.QuoteUpdate {
		return eventmodels.QuoteUpdate{
			InstrumentID: id,
			BidSize:      100,
			AskSize:      100,
			BidPrice:     1.0,
			AskPrice:     1.1,
			EventTime:    at,
		}
	}

	t.Run("evicts updates older than the window", func(t *testing.T) {
		tracker := NewQuoteWindowTracker(5)

		tracker.Add(quote("A", base))
		tracker.Add(quote("A", base.Add(3*time.Minute)))
		tracker.Add(quote("A", base.Add(6*time.Minute)))

		captured := tracker.Capture()
		assert.Len(t, captured, 2)
		for _, update := range captured {
			assert.False(t, update.EventTime.Before(base.Add(time.Minute)))
		}
	})

	t.Run("windows are per instrument", func(t *testing.T) {
		tracker := NewQuoteWindowTracker(5)

		tracker.Add(quote("A", base))
		tracker.Add(quote("B", base.Add(10*time.Minute)))

		// B's late update must not evict A's window
		assert.Len(t, tracker.Capture(), 2)
	})

	t.Run("malformed updates dropped", func(t *testing.T) {
		tracker := NewQuoteWindowTracker(5)

		tracker.Add(eventmodels.QuoteUpdate{InstrumentID: "", EventTime: base})

		assert.Empty(t, tracker.Capture())
	})
}
