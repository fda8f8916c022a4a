package eventconsumers

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/data"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/eventpubsub"
	"github.com/optionsflow/optionsflow/src/pipeline"
)

// SnapshotSource is any collaborator that can produce the next snapshot to
// scan; live polygon pulls and offline replays both satisfy it.
type SnapshotSource interface {
	Next(ctx context.Context) (*eventmodels.MarketSnapshot, float64, error)
}

// ScanWorker polls the snapshot source on a fixed interval, runs the
// pipeline, publishes the result on the bus and writes the versioned run
// artifact for the external report writer.
type ScanWorker struct {
	wg           *sync.WaitGroup
	orchestrator *pipeline.Orchestrator
	source       SnapshotSource
	criteria     eventmodels.RunCriteriaDTO
	artifactDir  string
	interval     time.Duration

	// fingerprints of the previous scan, evicted on the next tick: every
	// tick captures a fresh snapshot, so old entries can never hit again
	lastFingerprints []string
}

func NewScanWorker(wg *sync.WaitGroup, orchestrator *pipeline.Orchestrator, source SnapshotSource, criteria eventmodels.RunCriteriaDTO, artifactDir string, interval time.Duration) *ScanWorker {
	return &ScanWorker{
		wg:           wg,
		orchestrator: orchestrator,
		source:       source,
		criteria:     criteria,
		artifactDir:  artifactDir,
		interval:     interval,
	}
}

func (w *ScanWorker) executeScan(ctx context.Context) {
	snapshot, currentPrice, err := w.source.Next(ctx)
	if err != nil {
		eventpubsub.PublishError("ScanWorker.executeScan", fmt.Errorf("failed to fetch snapshot: %w", err))
		return
	}

	eventpubsub.Publish(eventpubsub.NewSnapshotEvent, snapshot)

	result, err := w.orchestrator.Run(ctx, snapshot, currentPrice)
	if err != nil {
		eventpubsub.PublishError("ScanWorker.executeScan", fmt.Errorf("run failed: %w", err))
		return
	}

	w.evictPreviousScan(result)

	eventpubsub.Publish(eventpubsub.RunCompletedEvent, result)

	if w.artifactDir != "" {
		artifact := eventmodels.NewRecommendationArtifactDTO(result, w.criteria)
		if _, err := data.WriteRunArtifact(w.artifactDir, artifact); err != nil {
			log.Errorf("ScanWorker.executeScan: %v", err)
		}
	}
}

func (w *ScanWorker) evictPreviousScan(result *eventmodels.RunResult) {
	cache := w.orchestrator.Cache()

	for _, fingerprint := range w.lastFingerprints {
		cache.Evict(fingerprint)
	}

	w.lastFingerprints = w.lastFingerprints[:0]
	for _, diag := range result.Diagnostics {
		if diag.Fingerprint != "" {
			w.lastFingerprints = append(w.lastFingerprints, diag.Fingerprint)
		}
	}
}

func (w *ScanWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	timer := time.NewTicker(w.interval)

	log.Info("starting ScanWorker consumer")

	go func() {
		defer w.wg.Done()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping ScanWorker consumer")
				return
			case <-timer.C:
				w.executeScan(ctx)
			}
		}
	}()
}
