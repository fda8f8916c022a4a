package detectors

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// QuoteWindowTracker keeps a per-instrument rolling window of quote updates.
// Eviction is ordered by event time, not a fixed-size buffer, since update
// rates vary between instruments. Add is safe for concurrent use; it is the
// subscription callback for the quote topic.
type QuoteWindowTracker struct {
	window  time.Duration
	mutex   sync.Mutex
	updates map[string][]eventmodels.QuoteUpdate
}

func NewQuoteWindowTracker(windowMinutes int) *QuoteWindowTracker {
	return &QuoteWindowTracker{
		window:  time.Duration(windowMinutes) * time.Minute,
		updates: make(map[string][]eventmodels.QuoteUpdate),
	}
}

func (t *QuoteWindowTracker) Add(update eventmodels.QuoteUpdate) {
	if err := update.Validate(); err != nil {
		log.Debugf("QuoteWindowTracker: skipping malformed update: %v", err)
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	window := append(t.updates[update.InstrumentID], update)

	// updates arrive ordered per instrument, so evict from the front until
	// the oldest survivor is inside the window
	cutoff := update.EventTime.Add(-t.window)
	start := 0
	for start < len(window) && window[start].EventTime.Before(cutoff) {
		start++
	}

	t.updates[update.InstrumentID] = window[start:]
}

// Capture copies the current window contents for a snapshot. The copy is
// flat across instruments; detectors regroup as needed.
func (t *QuoteWindowTracker) Capture() []eventmodels.QuoteUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var captured []eventmodels.QuoteUpdate
	for _, window := range t.updates {
		captured = append(captured, window...)
	}

	return captured
}
