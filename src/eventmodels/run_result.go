package eventmodels

import (
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type StageStatus string

const (
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusTimedOut  StageStatus = "timed_out"
)

// StageDiagnostic records the outcome of one detector stage within a run,
// including skip counts for malformed records and whether the stage result
// came from the fingerprint cache.
type StageDiagnostic struct {
	Detector       string        `json:"detector"`
	Fingerprint    string        `json:"fingerprint"`
	Status         StageStatus   `json:"status"`
	CacheHit       bool          `json:"cache_hit"`
	SignalCount    int           `json:"signal_count"`
	RecordsSkipped int           `json:"records_skipped"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// RunResult is the uniform envelope returned by every orchestrator run. A
// failed run still returns a well-formed RunResult so downstream consumers
// branch on Status instead of catching errors.
type RunResult struct {
	RunID           string                    `json:"run_id"`
	Status          RunStatus                 `json:"status"`
	Recommendations *TradingRecommendationSet `json:"recommendations"`
	Diagnostics     []StageDiagnostic         `json:"diagnostics"`
	StartedAt       time.Time                 `json:"started_at"`
	FinishedAt      time.Time                 `json:"finished_at"`
}
