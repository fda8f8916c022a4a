package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := Fingerprint("volume_anomaly", "v1", "snap1")
		require.NoError(t, err)

		b, err := Fingerprint("volume_anomaly", "v1", "snap1")
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("any component changes the key", func(t *testing.T) {
		base, err := Fingerprint("volume_anomaly", "v1", "snap1")
		require.NoError(t, err)

		otherConfig, err := Fingerprint("volume_anomaly", "v2", "snap1")
		require.NoError(t, err)

		otherSnapshot, err := Fingerprint("volume_anomaly", "v1", "snap2")
		require.NoError(t, err)

		otherDetector, err := Fingerprint("quote_pressure", "v1", "snap1")
		require.NoError(t, err)

		assert.NotEqual(t, base, otherConfig)
		assert.NotEqual(t, base, otherSnapshot)
		assert.NotEqual(t, base, otherDetector)
	})
}

func TestStageCache_GetOrCompute(t *testing.T) {
	t.Run("computes once and reports hits", func(t *testing.T) {
		cache := NewStageCache()
		computations := 0

		result, hit, err := cache.GetOrCompute("fp", func() (*StageResult, error) {
			computations++
			return &StageResult{Detector: "volume_anomaly"}, nil
		})
		assert.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "volume_anomaly", result.Detector)

		result, hit, err = cache.GetOrCompute("fp", func() (*StageResult, error) {
			computations++
			return nil, fmt.Errorf("must not run")
		})
		assert.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, "volume_anomaly", result.Detector)
		assert.Equal(t, 1, computations)
	})

	t.Run("concurrent callers share one computation", func(t *testing.T) {
		cache := NewStageCache()
		var computations int64

		wg := sync.WaitGroup{}
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				result, _, err := cache.GetOrCompute("fp", func() (*StageResult, error) {
					atomic.AddInt64(&computations, 1)
					return &StageResult{Detector: "volume_anomaly"}, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, "volume_anomaly", result.Detector)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), atomic.LoadInt64(&computations))
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("failures are cached until evicted", func(t *testing.T) {
		cache := NewStageCache()
		computations := 0

		_, hit, err := cache.GetOrCompute("fp", func() (*StageResult, error) {
			computations++
			return nil, fmt.Errorf("upstream unavailable")
		})
		assert.Error(t, err)
		assert.False(t, hit)

		_, hit, err = cache.GetOrCompute("fp", func() (*StageResult, error) {
			computations++
			return &StageResult{}, nil
		})
		assert.Error(t, err)
		assert.True(t, hit)
		assert.Equal(t, 1, computations)

		// retry policy belongs to the caller
		cache.Evict("fp")

		result, hit, err := cache.GetOrCompute("fp", func() (*StageResult, error) {
			computations++
			return &StageResult{Detector: "volume_anomaly"}, nil
		})
		assert.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, result)
		assert.Equal(t, 2, computations)
	})
}
