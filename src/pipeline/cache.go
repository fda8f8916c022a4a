package pipeline

import (
	"fmt"
	"sync"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/utils"
)

// StageResult is one detector stage's cached output: the raw signals plus
// the pass statistics. Scoring happens after retrieval so retuning the
// scorer never invalidates detection work.
type StageResult struct {
	Detector string
	Signals  []eventmodels.Signal
	Stats    detectors.DetectorStats
}

type cacheEntry struct {
	mutex  sync.Mutex
	done   bool
	result *StageResult
	err    error
}

// StageCache guarantees at most one computation per fingerprint. The entry
// mutex serializes per key: concurrent callers for the same fingerprint
// block on the single in-flight computation and share its result.
type StageCache struct {
	mutex   sync.Mutex
	entries map[string]*cacheEntry
}

func NewStageCache() *StageCache {
	return &StageCache{
		entries: make(map[string]*cacheEntry),
	}
}

// Fingerprint derives the cache key from detector identity, snapshot
// identity and detector config version.
func Fingerprint(detectorName, configVersion, snapshotIdentity string) (string, error) {
	fingerprint, err := utils.HashStruct(struct {
		Detector         string
		ConfigVersion    string
		SnapshotIdentity string
	}{detectorName, configVersion, snapshotIdentity})

	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to hash: %w", err)
	}

	return fingerprint, nil
}

// GetOrCompute returns the cached result for the fingerprint, computing it
// via fn when absent. The second return value reports whether the result
// came from cache. Failed computations are cached too: the orchestrator
// never retries a failed stage within a run, and the caller owns retry
// policy by evicting first.
func (c *StageCache) GetOrCompute(fingerprint string, fn func() (*StageResult, error)) (*StageResult, bool, error) {
	c.mutex.Lock()
	entry, found := c.entries[fingerprint]
	if !found {
		entry = &cacheEntry{}
		c.entries[fingerprint] = entry
	}
	c.mutex.Unlock()

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	if entry.done {
		return entry.result, true, entry.err
	}

	entry.result, entry.err = fn()
	entry.done = true

	return entry.result, false, entry.err
}

// Evict removes a fingerprint so the next caller recomputes.
func (c *StageCache) Evict(fingerprint string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, fingerprint)
}

func (c *StageCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}
