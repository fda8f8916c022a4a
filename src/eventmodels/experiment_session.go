package eventmodels

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusIdle      SessionStatus = "idle"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
)

// ProfileMetrics captures one profile's output for a single comparison
// interval.
type ProfileMetrics struct {
	RecommendationCount int     `json:"recommendation_count"`
	ActionableCount     int     `json:"actionable_count"`
	MeanExpectedValue   float64 `json:"mean_expected_value"`
	ActionableRate      float64 `json:"actionable_rate"`
	RealizedOutcome     float64 `json:"realized_outcome"`
}

// ComparisonRecord pairs the two profiles' metrics for one interval tick.
// The comparisons sequence on a session is append-only.
type ComparisonRecord struct {
	Interval  int            `json:"interval"`
	Timestamp time.Time      `json:"timestamp"`
	ProfileA  ProfileMetrics `json:"profile_a"`
	ProfileB  ProfileMetrics `json:"profile_b"`
}

// ExperimentSession tracks one A/B run of two detector configurations
// against the same data source. Mutated only by appending comparison records
// and on stop/complete; archived on stop.
type ExperimentSession struct {
	SessionID   string             `json:"session_id"`
	ProfileA    string             `json:"profile_a"`
	ProfileB    string             `json:"profile_b"`
	StartTime   time.Time          `json:"start_time"`
	Duration    time.Duration      `json:"duration"`
	Status      SessionStatus      `json:"status"`
	Comparisons []ComparisonRecord `json:"comparisons"`
}

// ExperimentStatus is the non-blocking view returned by GetStatus.
type ExperimentStatus struct {
	SessionID            string        `json:"session_id"`
	Status               SessionStatus `json:"status"`
	ElapsedHours         float64       `json:"elapsed_hours"`
	ComparisonsCollected int           `json:"comparisons_collected"`
	RollbackRecommended  bool          `json:"rollback_recommended"`
	RollbackTarget       string        `json:"rollback_target,omitempty"`
}

// ExperimentSummary is returned by Stop after the in-flight interval is
// flushed.
type ExperimentSummary struct {
	SessionID         string             `json:"session_id"`
	ProfileA          string             `json:"profile_a"`
	ProfileB          string             `json:"profile_b"`
	Intervals         int                `json:"intervals"`
	WinsA             int                `json:"wins_a"`
	WinsB             int                `json:"wins_b"`
	WinRateA          float64            `json:"win_rate_a"`
	MeanEVA           float64            `json:"mean_ev_a"`
	MeanEVB           float64            `json:"mean_ev_b"`
	StdDevEVA         float64            `json:"std_dev_ev_a"`
	StdDevEVB         float64            `json:"std_dev_ev_b"`
	RollbackTriggered bool               `json:"rollback_triggered"`
	RollbackTarget    string             `json:"rollback_target,omitempty"`
	Comparisons       []ComparisonRecord `json:"comparisons"`
}
