package detectors

import (
	"context"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// DetectorStats counts what a detector saw in one pass. Malformed records
// are skipped and counted, never fatal to the batch.
type DetectorStats struct {
	RecordsProcessed int
	RecordsSkipped   int
	SignalsEmitted   int
}

// Detector is one signal-detection stage. Implementations must be
// deterministic, side-effect-free and must never block on I/O: everything a
// detector needs is on the snapshot it is handed.
type Detector interface {
	Name() string

	// ConfigVersion changes whenever the detector's thresholds change, so
	// cached stage results keyed on it are invalidated by retuning.
	ConfigVersion() string

	Detect(ctx context.Context, snapshot *eventmodels.MarketSnapshot, currentPrice float64) ([]eventmodels.Signal, DetectorStats, error)
}
