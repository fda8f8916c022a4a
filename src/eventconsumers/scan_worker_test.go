package eventconsumers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/eventpubsub"
	"github.com/optionsflow/optionsflow/src/pipeline"
	"github.com/optionsflow/optionsflow/src/scoring"
)

type tickDetector struct {
	name string
}

func (d *tickDetector) Name() string { return d.name }

func (d *tickDetector) ConfigVersion() string { return "v1" }

func (d *tickDetector) Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, detectors.DetectorStats, error) {
	return []eventmodels.Signal{{
		Strike:         21100,
		OptionType:     eventmodels.OptionTypeCall,
		Direction:      eventmodels.DirectionLong,
		Confidence:     eventmodels.ConfidenceHigh,
		MetricValue:    15,
		DollarSize:     2e6,
		TargetPrice:    21100,
		Volume:         5000,
		OpenInterest:   10000,
		DetectorSource: d.name,
		CreatedAt:      snapshot.CapturedAt,
	}}, detectors.DetectorStats{RecordsProcessed: 1, SignalsEmitted: 1}, nil
}

// tickingSource captures a fresh snapshot per call, the way the live source
// does on every scan interval.
type tickingSource struct {
	capturedAt time.Time
}

func (s *tickingSource) Next(ctx context.Context) (*eventmodels.MarketSnapshot, float64, error) {
	s.capturedAt = s.capturedAt.Add(time.Minute)

	expiration := s.capturedAt.Add(4 * time.Hour)

	snapshot, err := eventmodels.NewMarketSnapshot("NDX", s.capturedAt, []eventmodels.OptionContractSnapshot{
		{Strike: 21100, OptionType: eventmodels.OptionTypeCall, Volume: 2500, OpenInterest: 150, LastPrice: 125, Expiration: expiration},
	}, nil)
	if err != nil {
		return nil, 0, err
	}

	return snapshot, 21054.50, nil
}

func TestScanWorker_CacheStaysBounded(t *testing.T) {
	eventpubsub.Init()

	scorer, err := scoring.NewScorer(scoring.DefaultScorerConfig())
	require.NoError(t, err)

	stages := []detectors.Detector{&tickDetector{name: "volume_anomaly"}, &tickDetector{name: "quote_pressure"}}

	cache := pipeline.NewStageCache()
	orchestrator, err := pipeline.NewOrchestrator(pipeline.DefaultConfig(), stages, scorer, cache)
	require.NoError(t, err)

	source := &tickingSource{capturedAt: time.Date(2026, 3, 13, 15, 30, 0, 0, time.UTC)}

	var wg sync.WaitGroup
	worker := NewScanWorker(&wg, orchestrator, source, eventmodels.RunCriteriaDTO{}, "", time.Minute)

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		worker.executeScan(ctx)

		// each tick mints new fingerprints; the previous tick's entries
		// must be gone or the cache grows for the life of the process
		assert.LessOrEqual(t, cache.Len(), len(stages))
	}

	assert.Equal(t, len(stages), cache.Len())
}
