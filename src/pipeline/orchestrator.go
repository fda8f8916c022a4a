package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/scoring"
)

type Config struct {
	StageTimeout        time.Duration `yaml:"stage_timeout" json:"stage_timeout"`
	MaxConcurrentStages int           `yaml:"max_concurrent_stages" json:"max_concurrent_stages"`
}

func DefaultConfig() Config {
	return Config{
		StageTimeout:        10 * time.Second,
		MaxConcurrentStages: 4,
	}
}

// UnmarshalYAML accepts stage_timeout as a duration string, e.g. "10s".
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		StageTimeout        string `yaml:"stage_timeout"`
		MaxConcurrentStages int    `yaml:"max_concurrent_stages"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.StageTimeout != "" {
		timeout, err := time.ParseDuration(raw.StageTimeout)
		if err != nil {
			return fmt.Errorf("Config.UnmarshalYAML: invalid stage_timeout: %w", err)
		}

		c.StageTimeout = timeout
	}

	c.MaxConcurrentStages = raw.MaxConcurrentStages

	return nil
}

// Orchestrator runs the configured detector stages concurrently against one
// immutable snapshot, caches stage results per fingerprint, and aggregates
// survivors into a ranked recommendation set. It performs no retries; retry
// policy belongs to the caller.
type Orchestrator struct {
	detectors []detectors.Detector
	scorer    *scoring.Scorer
	cache     *StageCache
	config    Config
	tracer    trace.Tracer
}

func NewOrchestrator(config Config, stages []detectors.Detector, scorer *scoring.Scorer, cache *StageCache) (*Orchestrator, error) {
	if len(stages) == 0 {
		return nil, eventmodels.NewConfigurationError("detectors", "at least one detector stage is required")
	}

	if scorer == nil {
		return nil, eventmodels.NewConfigurationError("scorer", "scorer is required")
	}

	if config.StageTimeout <= 0 {
		config.StageTimeout = DefaultConfig().StageTimeout
	}

	if config.MaxConcurrentStages <= 0 {
		// pool size never needs to exceed stage count
		config.MaxConcurrentStages = len(stages)
	}

	if cache == nil {
		cache = NewStageCache()
	}

	return &Orchestrator{
		detectors: stages,
		scorer:    scorer,
		cache:     cache,
		config:    config,
		tracer:    otel.GetTracerProvider().Tracer("pipeline"),
	}, nil
}

func (o *Orchestrator) Cache() *StageCache {
	return o.cache
}

type stageOutcome struct {
	diagnostic eventmodels.StageDiagnostic
	result     *StageResult
}

// Run executes one pipeline pass. It never returns an error for stage-level
// failures: a run with every stage failed comes back as a well-formed
// RunResult with status FAILED so downstream consumers branch on status
// uniformly.
func (o *Orchestrator) Run(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) (*eventmodels.RunResult, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("Orchestrator.Run: snapshot is required")
	}

	// scoring divides by the underlying price, so a missing reference
	// price must fail here rather than produce NaN expected values
	if currentPrice <= 0 {
		return nil, fmt.Errorf("Orchestrator.Run: current price must be positive, found %v", currentPrice)
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	logger := log.WithContext(ctx)

	result := &eventmodels.RunResult{
		RunID:     uuid.NewString(),
		Status:    eventmodels.RunStatusPending,
		StartedAt: time.Now().UTC(),
	}

	span.SetAttributes(attribute.String("run_id", result.RunID), attribute.String("snapshot", snapshot.Identity()))

	// absence of data is a valid terminal state, not an error
	if snapshot.IsEmpty() {
		logger.WithField("run_id", result.RunID).Info("empty snapshot, returning empty recommendation set")
		result.Status = eventmodels.RunStatusSucceeded
		result.Recommendations = Aggregate(result.RunID, snapshot.CapturedAt, currentPrice, nil)
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	result.Status = eventmodels.RunStatusRunning

	outcomes := make([]stageOutcome, len(o.detectors))
	semaphore := make(chan struct{}, o.config.MaxConcurrentStages)
	wg := sync.WaitGroup{}

	for i, detector := range o.detectors {
		wg.Add(1)

		go func(index int, stage detectors.Detector) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[index] = o.runStage(ctx, stage, snapshot, currentPrice)
		}(i, detector)
	}

	wg.Wait()

	var plans []eventmodels.TradePlan
	succeeded := 0

	marketCtx := scoring.NewMarketContext(snapshot, currentPrice)

	for _, outcome := range outcomes {
		result.Diagnostics = append(result.Diagnostics, outcome.diagnostic)

		if outcome.diagnostic.Status != eventmodels.StageStatusSucceeded {
			continue
		}

		succeeded++

		for _, signal := range outcome.result.Signals {
			plans = append(plans, o.scorer.Score(signal, marketCtx))
		}
	}

	switch {
	case succeeded == len(o.detectors):
		result.Status = eventmodels.RunStatusSucceeded
	case succeeded > 0:
		result.Status = eventmodels.RunStatusPartial
	default:
		result.Status = eventmodels.RunStatusFailed
	}

	if result.Status != eventmodels.RunStatusFailed {
		result.Recommendations = Aggregate(result.RunID, snapshot.CapturedAt, currentPrice, plans)
	}

	result.FinishedAt = time.Now().UTC()

	logger.WithField("run_id", result.RunID).Infof("run finished with status %s: %d/%d stages succeeded, %d plans", result.Status, succeeded, len(o.detectors), len(plans))

	return result, nil
}

// runStage executes one detector through the fingerprint cache with the
// configured timeout. A stage that exceeds its timeout is abandoned: its
// computation may still finish in the background and populate the cache,
// but nothing from it reaches the aggregator this run.
func (o *Orchestrator) runStage(ctx context.Context, stage detectors.Detector, snapshot *eventmodels.MarketSnapshot, currentPrice float64) stageOutcome {
	stageCtx, span := o.tracer.Start(ctx, fmt.Sprintf("stage:%s", stage.Name()))
	defer span.End()

	started := time.Now()

	diagnostic := eventmodels.StageDiagnostic{
		Detector: stage.Name(),
	}

	fingerprint, err := Fingerprint(stage.Name(), stage.ConfigVersion(), snapshot.Identity())
	if err != nil {
		diagnostic.Status = eventmodels.StageStatusFailed
		diagnostic.Error = err.Error()
		diagnostic.Duration = time.Since(started)
		return stageOutcome{diagnostic: diagnostic}
	}

	diagnostic.Fingerprint = fingerprint

	stageCtx, cancel := context.WithTimeout(stageCtx, o.config.StageTimeout)
	defer cancel()

	type stageDone struct {
		result   *StageResult
		cacheHit bool
		err      error
	}

	doneCh := make(chan stageDone, 1)

	go func() {
		defer func() {
			// a panicking stage degrades the run, never crashes it
			if r := recover(); r != nil {
				doneCh <- stageDone{err: fmt.Errorf("stage %s panicked: %v", stage.Name(), r)}
			}
		}()

		result, cacheHit, err := o.cache.GetOrCompute(fingerprint, func() (*StageResult, error) {
			signals, stats, detectErr := stage.Detect(stageCtx, snapshot, currentPrice)
			if detectErr != nil {
				return nil, detectErr
			}

			return &StageResult{
				Detector: stage.Name(),
				Signals:  signals,
				Stats:    stats,
			}, nil
		})

		doneCh <- stageDone{result: result, cacheHit: cacheHit, err: err}
	}()

	select {
	case <-stageCtx.Done():
		diagnostic.Status = eventmodels.StageStatusTimedOut
		diagnostic.Error = fmt.Sprintf("stage %s exceeded timeout of %v", stage.Name(), o.config.StageTimeout)
		diagnostic.Duration = time.Since(started)
		log.Errorf("Orchestrator.runStage: %v", diagnostic.Error)
		return stageOutcome{diagnostic: diagnostic}

	case done := <-doneCh:
		diagnostic.Duration = time.Since(started)
		diagnostic.CacheHit = done.cacheHit

		if done.err != nil {
			diagnostic.Status = eventmodels.StageStatusFailed
			diagnostic.Error = done.err.Error()
			log.Errorf("Orchestrator.runStage: stage %s failed: %v", stage.Name(), done.err)
			return stageOutcome{diagnostic: diagnostic}
		}

		diagnostic.Status = eventmodels.StageStatusSucceeded
		diagnostic.SignalCount = len(done.result.Signals)
		diagnostic.RecordsSkipped = done.result.Stats.RecordsSkipped

		return stageOutcome{diagnostic: diagnostic, result: done.result}
	}
}
