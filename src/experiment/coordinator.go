package experiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/go-events"
	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/eventpubsub"
	"github.com/optionsflow/optionsflow/src/pipeline"
)

// RollbackRecommended fires when one profile degrades past the configured
// floor. Listeners decide whether to act; the coordinator never kills the
// other profile on its own.
const RollbackRecommended events.EventName = "experiment.RollbackRecommended"

// DataSource supplies the next shared snapshot both profiles are fed.
// Returning an empty snapshot is valid and means no data this interval.
type DataSource interface {
	Next(ctx context.Context) (*eventmodels.MarketSnapshot, float64, error)
}

// Profile is one orchestrator configuration under comparison.
type Profile struct {
	Name         string
	Orchestrator *pipeline.Orchestrator
}

// OutcomeFunc lets the caller attach realized outcome metrics to an
// interval, e.g. marked-to-market P&L of the previous interval's plans.
type OutcomeFunc func(profileName string, result *eventmodels.RunResult) float64

type Config struct {
	Duration             time.Duration `yaml:"duration" json:"duration"`
	ComparisonInterval   time.Duration `yaml:"comparison_interval" json:"comparison_interval"`
	DegradationFloor     float64       `yaml:"degradation_floor" json:"degradation_floor"`
	DegradationIntervals int           `yaml:"degradation_intervals" json:"degradation_intervals"`
}

func DefaultConfig() Config {
	return Config{
		Duration:             2 * time.Hour,
		ComparisonInterval:   5 * time.Minute,
		DegradationFloor:     0.1,
		DegradationIntervals: 3,
	}
}

func (c Config) Validate() error {
	if c.Duration <= 0 {
		return eventmodels.NewConfigurationError("duration", fmt.Sprintf("must be positive, found %v", c.Duration))
	}

	if c.ComparisonInterval <= 0 {
		return eventmodels.NewConfigurationError("comparison_interval", fmt.Sprintf("must be positive, found %v", c.ComparisonInterval))
	}

	if c.DegradationFloor < 0 || c.DegradationFloor > 1 {
		return eventmodels.NewConfigurationError("degradation_floor", fmt.Sprintf("must be in [0,1], found %v", c.DegradationFloor))
	}

	if c.DegradationIntervals <= 0 {
		return eventmodels.NewConfigurationError("degradation_intervals", fmt.Sprintf("must be positive, found %v", c.DegradationIntervals))
	}

	return nil
}

// Coordinator runs two orchestrator profiles side by side against the same
// data source for a bounded duration and collects comparative metrics per
// interval. One coordinator owns at most one session at a time.
type Coordinator struct {
	config  Config
	outcome OutcomeFunc

	mutex               sync.Mutex
	session             *eventmodels.ExperimentSession
	profileA            Profile
	profileB            Profile
	source              DataSource
	cancel              context.CancelFunc
	doneCh              chan struct{}
	degradedStreakA     int
	degradedStreakB     int
	rollbackRecommended bool
	rollbackTarget      string
	rollbackConfirmed   bool
}

func NewCoordinator(config Config, outcome OutcomeFunc) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewCoordinator: %w", err)
	}

	return &Coordinator{
		config:  config,
		outcome: outcome,
	}, nil
}

func (c *Coordinator) Start(ctx context.Context, profileA, profileB Profile, source DataSource) (*eventmodels.ExperimentSession, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session != nil && c.session.Status == eventmodels.SessionStatusRunning {
		return nil, fmt.Errorf("Coordinator.Start: session %s is already running", c.session.SessionID)
	}

	if profileA.Orchestrator == nil || profileB.Orchestrator == nil {
		return nil, eventmodels.NewConfigurationError("profiles", "both profiles need an orchestrator")
	}

	if source == nil {
		return nil, eventmodels.NewConfigurationError("data_source", "a data source is required")
	}

	session := &eventmodels.ExperimentSession{
		SessionID: uuid.NewString(),
		ProfileA:  profileA.Name,
		ProfileB:  profileB.Name,
		StartTime: time.Now().UTC(),
		Duration:  c.config.Duration,
		Status:    eventmodels.SessionStatusRunning,
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.session = session
	c.profileA = profileA
	c.profileB = profileB
	c.source = source
	c.cancel = cancel
	c.doneCh = make(chan struct{})
	c.degradedStreakA = 0
	c.degradedStreakB = 0
	c.rollbackRecommended = false
	c.rollbackTarget = ""
	c.rollbackConfirmed = false

	log.WithField("session_id", session.SessionID).Infof("experiment started: %s vs %s for %v", profileA.Name, profileB.Name, c.config.Duration)

	go c.collectLoop(runCtx)

	return session, nil
}

// collectLoop is the single aggregation point per session: both profiles'
// metrics are funneled through it on each interval tick, so the comparisons
// sequence is never written concurrently.
func (c *Coordinator) collectLoop(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.ComparisonInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(c.config.Duration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			// Stop flushes the in-flight interval before we transition
			c.collectInterval(context.Background())
			c.finalize(eventmodels.SessionStatusStopped)
			return

		case <-deadline.C:
			c.collectInterval(ctx)
			c.finalize(eventmodels.SessionStatusCompleted)
			return

		case <-ticker.C:
			c.collectInterval(ctx)
		}
	}
}

func (c *Coordinator) collectInterval(ctx context.Context) {
	snapshot, currentPrice, err := c.source.Next(ctx)
	if err != nil {
		log.Errorf("Coordinator.collectInterval: failed to fetch snapshot: %v", err)
		return
	}

	if snapshot == nil {
		return
	}

	var resultA, resultB *eventmodels.RunResult
	var errA, errB error

	wg := sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		resultA, errA = c.profileA.Orchestrator.Run(ctx, snapshot, currentPrice)
	}()

	go func() {
		defer wg.Done()
		resultB, errB = c.profileB.Orchestrator.Run(ctx, snapshot, currentPrice)
	}()

	wg.Wait()

	if errA != nil || errB != nil {
		log.Errorf("Coordinator.collectInterval: run failed: profileA=%v profileB=%v", errA, errB)
		return
	}

	metricsA := c.profileMetrics(c.profileA.Name, resultA)
	metricsB := c.profileMetrics(c.profileB.Name, resultB)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil || c.session.Status != eventmodels.SessionStatusRunning {
		return
	}

	record := eventmodels.ComparisonRecord{
		Interval:  len(c.session.Comparisons) + 1,
		Timestamp: time.Now().UTC(),
		ProfileA:  metricsA,
		ProfileB:  metricsB,
	}

	c.session.Comparisons = append(c.session.Comparisons, record)

	c.checkDegradation(metricsA, metricsB)
}

func (c *Coordinator) profileMetrics(name string, result *eventmodels.RunResult) eventmodels.ProfileMetrics {
	metrics := eventmodels.ProfileMetrics{}

	if result.Recommendations != nil {
		metrics.RecommendationCount = len(result.Recommendations.Plans)
		metrics.ActionableCount = result.Recommendations.ActionableCount()

		if metrics.RecommendationCount > 0 {
			evs := make([]float64, 0, metrics.RecommendationCount)
			for _, plan := range result.Recommendations.Plans {
				evs = append(evs, plan.ExpectedValue)
			}

			mean, err := stats.Mean(evs)
			if err == nil {
				metrics.MeanExpectedValue = mean
			}

			metrics.ActionableRate = float64(metrics.ActionableCount) / float64(metrics.RecommendationCount)
		}
	}

	if c.outcome != nil {
		metrics.RealizedOutcome = c.outcome(name, result)
	}

	return metrics
}

// checkDegradation is called with the coordinator mutex held.
func (c *Coordinator) checkDegradation(metricsA, metricsB eventmodels.ProfileMetrics) {
	if c.rollbackRecommended {
		return
	}

	if metricsA.RecommendationCount > 0 && metricsA.ActionableRate < c.config.DegradationFloor {
		c.degradedStreakA++
	} else {
		c.degradedStreakA = 0
	}

	if metricsB.RecommendationCount > 0 && metricsB.ActionableRate < c.config.DegradationFloor {
		c.degradedStreakB++
	} else {
		c.degradedStreakB = 0
	}

	var target string
	if c.degradedStreakA >= c.config.DegradationIntervals {
		target = c.session.ProfileA
	} else if c.degradedStreakB >= c.config.DegradationIntervals {
		target = c.session.ProfileB
	}

	if target == "" {
		return
	}

	c.rollbackRecommended = true
	c.rollbackTarget = target

	log.WithField("session_id", c.session.SessionID).Warnf("rollback recommended: profile %s actionable rate below %.2f for %d consecutive intervals", target, c.config.DegradationFloor, c.config.DegradationIntervals)

	events.Emit(RollbackRecommended, c.session.SessionID, target)
	eventpubsub.Publish(eventpubsub.RollbackRecommendedEvent, target)
}

// ConfirmRollback is the separate, explicit activation step: the
// coordinator only ever recommends.
func (c *Coordinator) ConfirmRollback(target string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.rollbackRecommended {
		return fmt.Errorf("Coordinator.ConfirmRollback: no rollback recommendation pending")
	}

	if target != c.rollbackTarget {
		return fmt.Errorf("Coordinator.ConfirmRollback: recommendation targets profile %s, not %s", c.rollbackTarget, target)
	}

	c.rollbackConfirmed = true

	log.WithField("session_id", c.session.SessionID).Warnf("rollback confirmed for profile %s", target)

	return nil
}

func (c *Coordinator) finalize(status eventmodels.SessionStatus) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil || c.session.Status != eventmodels.SessionStatusRunning {
		return
	}

	c.session.Status = status

	log.WithField("session_id", c.session.SessionID).Infof("experiment %s with %d comparisons", status, len(c.session.Comparisons))
}

// Stop cancels the running session, waits for the in-flight interval to
// flush, and returns the final summary.
func (c *Coordinator) Stop() (*eventmodels.ExperimentSummary, error) {
	c.mutex.Lock()

	if c.session == nil {
		c.mutex.Unlock()
		return nil, fmt.Errorf("Coordinator.Stop: no session started")
	}

	cancel := c.cancel
	doneCh := c.doneCh
	c.mutex.Unlock()

	if cancel != nil {
		cancel()
	}

	if doneCh != nil {
		<-doneCh
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.buildSummary(), nil
}

// GetStatus never blocks on a running collection.
func (c *Coordinator) GetStatus() (*eventmodels.ExperimentStatus, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil {
		return &eventmodels.ExperimentStatus{Status: eventmodels.SessionStatusIdle}, nil
	}

	return &eventmodels.ExperimentStatus{
		SessionID:            c.session.SessionID,
		Status:               c.session.Status,
		ElapsedHours:         time.Since(c.session.StartTime).Hours(),
		ComparisonsCollected: len(c.session.Comparisons),
		RollbackRecommended:  c.rollbackRecommended,
		RollbackTarget:       c.rollbackTarget,
	}, nil
}

// buildSummary is called with the coordinator mutex held.
func (c *Coordinator) buildSummary() *eventmodels.ExperimentSummary {
	summary := &eventmodels.ExperimentSummary{
		SessionID:         c.session.SessionID,
		ProfileA:          c.session.ProfileA,
		ProfileB:          c.session.ProfileB,
		Intervals:         len(c.session.Comparisons),
		RollbackTriggered: c.rollbackRecommended,
		RollbackTarget:    c.rollbackTarget,
		Comparisons:       c.session.Comparisons,
	}

	var evsA, evsB []float64

	for _, record := range c.session.Comparisons {
		evsA = append(evsA, record.ProfileA.MeanExpectedValue)
		evsB = append(evsB, record.ProfileB.MeanExpectedValue)

		if record.ProfileA.MeanExpectedValue > record.ProfileB.MeanExpectedValue {
			summary.WinsA++
		} else if record.ProfileB.MeanExpectedValue > record.ProfileA.MeanExpectedValue {
			summary.WinsB++
		}
	}

	if summary.Intervals > 0 {
		summary.WinRateA = float64(summary.WinsA) / float64(summary.Intervals)
	}

	if mean, err := stats.Mean(evsA); err == nil {
		summary.MeanEVA = mean
	}

	if mean, err := stats.Mean(evsB); err == nil {
		summary.MeanEVB = mean
	}

	if sd, err := stats.StandardDeviation(evsA); err == nil {
		summary.StdDevEVA = sd
	}

	if sd, err := stats.StandardDeviation(evsB); err == nil {
		summary.StdDevEVB = sd
	}

	return summary
}
