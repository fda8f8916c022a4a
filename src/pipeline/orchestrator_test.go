package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/scoring"
)

// stubDetector lets a test script any stage behavior.
type stubDetector struct {
	name    string
	version string
	detect  func(ctx context.Context) ([]eventmodels.Signal, detectors.DetectorStats, error)
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) ConfigVersion() string { return d.version }

func (d *stubDetector) Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, detectors.DetectorStats, error) {
	return d.detect(ctx)
}

func emittingStub(name string, strike float64) *stubDetector {
	return &stubDetector{
		name:    name,
		version: "v1",
		detect: func(ctx context.Context) ([]eventmodels.Signal, detectors.DetectorStats, error) {
			return []eventmodels.Signal{{
				Strike:         strike,
				OptionType:     eventmodels.OptionTypeCall,
				Direction:      eventmodels.DirectionLong,
				Confidence:     eventmodels.ConfidenceHigh,
				MetricValue:    15,
				DollarSize:     2e6,
				TargetPrice:    strike,
				Volume:         5000,
				OpenInterest:   10000,
				DetectorSource: name,
			}}, detectors.DetectorStats{RecordsProcessed: 1, SignalsEmitted: 1}, nil
		},
	}
}

func failingStub(name string) *stubDetector {
	return &stubDetector{
		name:    name,
		version: "v1",
		detect: func(ctx context.Context) ([]eventmodels.Signal, detectors.DetectorStats, error) {
			return nil, detectors.DetectorStats{}, fmt.Errorf("%s: upstream unavailable", name)
		},
	}
}

func testScorer(t *testing.T) *scoring.Scorer {
	scorer, err := scoring.NewScorer(scoring.DefaultScorerConfig())
	require.NoError(t, err)
	return scorer
}

func testOrchestratorSnapshot(t *testing.T) *eventmodels.MarketSnapshot {
	capturedAt := time.Date(2026, 3, 13, 15, 30, 0, 0, time.UTC)
	expiration := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)

	snapshot, err := eventmodels.NewMarketSnapshot("NDX", capturedAt, []eventmodels.OptionContractSnapshot{
		{Strike: 21100, OptionType: eventmodels.OptionTypeCall, Volume: 2500, OpenInterest: 150, LastPrice: 125, Expiration: expiration},
	}, nil)
	require.NoError(t, err)

	return snapshot
}

func TestNewOrchestrator(t *testing.T) {
	scorer := testScorer(t)

	t.Run("requires at least one stage", func(t *testing.T) {
		_, err := NewOrchestrator(DefaultConfig(), nil, scorer, NewStageCache())
		assert.Error(t, err)

		var configErr *eventmodels.ConfigurationError
		assert.ErrorAs(t, err, &configErr)
	})

	t.Run("requires a scorer", func(t *testing.T) {
		_, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{emittingStub("volume_anomaly", 21100)}, nil, NewStageCache())
		assert.Error(t, err)
	})
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	scorer := testScorer(t)

	t.Run("all stages succeed", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
			emittingStub("quote_pressure", 21200),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, testOrchestratorSnapshot(t), 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusSucceeded, result.Status)
		assert.NotEmpty(t, result.RunID)
		require.NotNil(t, result.Recommendations)
		assert.Len(t, result.Recommendations.Plans, 2)

		require.Len(t, result.Diagnostics, 2)
		assert.Equal(t, "volume_anomaly", result.Diagnostics[0].Detector)
		assert.Equal(t, "quote_pressure", result.Diagnostics[1].Detector)
		for _, diag := range result.Diagnostics {
			assert.Equal(t, eventmodels.StageStatusSucceeded, diag.Status)
			assert.False(t, diag.CacheHit)
			assert.Equal(t, 1, diag.SignalCount)
			assert.NotEmpty(t, diag.Fingerprint)
		}
	})

	t.Run("one failed stage degrades to partial", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
			failingStub("quote_pressure"),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, testOrchestratorSnapshot(t), 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusPartial, result.Status)
		require.NotNil(t, result.Recommendations)
		assert.Len(t, result.Recommendations.Plans, 1)

		assert.Equal(t, eventmodels.StageStatusFailed, result.Diagnostics[1].Status)
		assert.Contains(t, result.Diagnostics[1].Error, "upstream unavailable")
	})

	t.Run("all stages failed", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			failingStub("volume_anomaly"),
			failingStub("quote_pressure"),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, testOrchestratorSnapshot(t), 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusFailed, result.Status)
		assert.Nil(t, result.Recommendations)
	})

	t.Run("empty snapshot short circuits", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			failingStub("volume_anomaly"),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		empty, err := eventmodels.NewMarketSnapshot("NDX", time.Now().UTC(), nil, nil)
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, empty, 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusSucceeded, result.Status)
		assert.Empty(t, result.Diagnostics)
		require.NotNil(t, result.Recommendations)
		assert.Empty(t, result.Recommendations.Plans)
	})

	t.Run("nil snapshot is the caller's bug", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		_, err = orchestrator.Run(ctx, nil, 21054.50)
		assert.Error(t, err)
	})

	t.Run("a missing reference price is rejected", func(t *testing.T) {
		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
		}, scorer, NewStageCache())
		require.NoError(t, err)

		_, err = orchestrator.Run(ctx, testOrchestratorSnapshot(t), 0)
		assert.Error(t, err)

		_, err = orchestrator.Run(ctx, testOrchestratorSnapshot(t), -21054.50)
		assert.Error(t, err)
	})

	t.Run("panicking stage degrades, never crashes", func(t *testing.T) {
		panicking := &stubDetector{
			name:    "quote_pressure",
			version: "v1",
			detect: func(ctx context.Context) ([]eventmodels.Signal, detectors.DetectorStats, error) {
				panic("boom")
			},
		}

		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
			panicking,
		}, scorer, NewStageCache())
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, testOrchestratorSnapshot(t), 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusPartial, result.Status)
		assert.Equal(t, eventmodels.StageStatusFailed, result.Diagnostics[1].Status)
		assert.Contains(t, result.Diagnostics[1].Error, "panicked")
	})

	t.Run("slow stage times out", func(t *testing.T) {
		slow := &stubDetector{
			name:    "quote_pressure",
			version: "v1",
			detect: func(ctx context.Context) ([]eventmodels.Signal, detectors.DetectorStats, error) {
				// deliberately ignores cancellation
				time.Sleep(500 * time.Millisecond)
				return nil, detectors.DetectorStats{}, nil
			},
		}

		config := DefaultConfig()
		config.StageTimeout = 20 * time.Millisecond

		orchestrator, err := NewOrchestrator(config, []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
			slow,
		}, scorer, NewStageCache())
		require.NoError(t, err)

		result, err := orchestrator.Run(ctx, testOrchestratorSnapshot(t), 21054.50)
		require.NoError(t, err)

		assert.Equal(t, eventmodels.RunStatusPartial, result.Status)
		assert.Equal(t, eventmodels.StageStatusTimedOut, result.Diagnostics[1].Status)
		assert.Len(t, result.Recommendations.Plans, 1)
	})

	t.Run("identical rerun is served from cache", func(t *testing.T) {
		cache := NewStageCache()
		snapshot := testOrchestratorSnapshot(t)

		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("volume_anomaly", 21100),
			emittingStub("quote_pressure", 21200),
		}, scorer, cache)
		require.NoError(t, err)

		first, err := orchestrator.Run(ctx, snapshot, 21054.50)
		require.NoError(t, err)

		second, err := orchestrator.Run(ctx, snapshot, 21054.50)
		require.NoError(t, err)

		for _, diag := range second.Diagnostics {
			assert.True(t, diag.CacheHit)
		}

		// same plans in the same order, only the run id differs
		assert.Equal(t, first.Recommendations.Plans, second.Recommendations.Plans)
		assert.NotEqual(t, first.RunID, second.RunID)
	})

	t.Run("changed quote window is never served from cache", func(t *testing.T) {
		cache := NewStageCache()

		capturedAt := time.Date(2026, 3, 13, 15, 30, 0, 0, time.UTC)
		expiration := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
		contracts := []eventmodels.OptionContractSnapshot{
			{Strike: 21100, OptionType: eventmodels.OptionTypeCall, Volume: 2500, OpenInterest: 150, LastPrice: 125, Expiration: expiration},
		}

		bidHeavy, err := eventmodels.NewMarketSnapshot("NDX", capturedAt, contracts, []eventmodels.QuoteUpdate{
			{InstrumentID: "NDX260313C21100000", BidSize: 5000, AskSize: 100, BidPrice: 125.5, AskPrice: 126.0, EventTime: capturedAt.Add(-time.Minute)},
		})
		require.NoError(t, err)

		askHeavy, err := eventmodels.NewMarketSnapshot("NDX", capturedAt, contracts, []eventmodels.QuoteUpdate{
			{InstrumentID: "NDX260313C21100000", BidSize: 100, AskSize: 5000, BidPrice: 125.5, AskPrice: 126.0, EventTime: capturedAt.Add(-time.Minute)},
		})
		require.NoError(t, err)

		orchestrator, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{
			emittingStub("quote_pressure", 21100),
		}, scorer, cache)
		require.NoError(t, err)

		first, err := orchestrator.Run(ctx, bidHeavy, 21054.50)
		require.NoError(t, err)
		assert.False(t, first.Diagnostics[0].CacheHit)

		second, err := orchestrator.Run(ctx, askHeavy, 21054.50)
		require.NoError(t, err)

		assert.False(t, second.Diagnostics[0].CacheHit)
		assert.NotEqual(t, first.Diagnostics[0].Fingerprint, second.Diagnostics[0].Fingerprint)
	})

	t.Run("config change invalidates the cache", func(t *testing.T) {
		cache := NewStageCache()
		snapshot := testOrchestratorSnapshot(t)

		v1 := emittingStub("volume_anomaly", 21100)

		v2 := emittingStub("volume_anomaly", 21100)
		v2.version = "v2"

		a, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{v1}, scorer, cache)
		require.NoError(t, err)

		b, err := NewOrchestrator(DefaultConfig(), []detectors.Detector{v2}, scorer, cache)
		require.NoError(t, err)

		_, err = a.Run(ctx, snapshot, 21054.50)
		require.NoError(t, err)

		result, err := b.Run(ctx, snapshot, 21054.50)
		require.NoError(t, err)

		assert.False(t, result.Diagnostics[0].CacheHit)
		assert.Equal(t, 2, cache.Len())
	})
}
