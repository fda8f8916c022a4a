package eventservices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/pipeline"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadScannerConfig(t *testing.T) {
	t.Run("minimal config falls back to defaults", func(t *testing.T) {
		config, err := LoadScannerConfig(writeConfig(t, "symbol: NDX\n"))
		require.NoError(t, err)

		assert.Equal(t, "NDX", config.Symbol)
		assert.Equal(t, "baseline", config.ProfileA.Name)
		assert.Len(t, config.ProfileA.EnabledDetectors, 3)
		assert.Nil(t, config.ProfileB)
		assert.Equal(t, 10.0, config.ProfileA.VolumeAnomaly.MinVolOIRatio)
	})

	t.Run("partial overrides merge over defaults", func(t *testing.T) {
		config, err := LoadScannerConfig(writeConfig(t, `
symbol: NDX
profile_a:
  name: tuned
  volume_anomaly:
    min_vol_oi_ratio: 15
    min_volume: 100
    min_dollar_size: 1000000
    contract_multiplier: 20
    tiers:
      - threshold: 15
        confidence: high
  pipeline:
    stage_timeout: 2s
    max_concurrent_stages: 2
`))
		require.NoError(t, err)

		assert.Equal(t, "tuned", config.ProfileA.Name)
		assert.Equal(t, 15.0, config.ProfileA.VolumeAnomaly.MinVolOIRatio)
		assert.Equal(t, "2s", config.ProfileA.Pipeline.StageTimeout.String())

		// untouched sections keep their defaults
		assert.Equal(t, 3.0, config.ProfileA.QuotePressure.MinPressureRatio)
	})

	t.Run("missing symbol rejected", func(t *testing.T) {
		_, err := LoadScannerConfig(writeConfig(t, "profile_a:\n  name: a\n"))
		assert.Error(t, err)
	})

	t.Run("invalid weights rejected before any run", func(t *testing.T) {
		_, err := LoadScannerConfig(writeConfig(t, `
symbol: NDX
profile_a:
  name: broken
  enabled_detectors: [volume_anomaly]
  scorer:
    weights:
      oi_factor: 0.95
      vol_factor: 0.3
      pcr_factor: 0.2
      distance_factor: 0.2
    min_probability: 0.45
    stop_loss_percent: 0.01
    oi_normalization: 10000
    vol_normalization: 5000
    max_distance_percent: 0.05
`))
		require.Error(t, err)

		var configErr *eventmodels.ConfigurationError
		assert.ErrorAs(t, err, &configErr)
	})

	t.Run("unknown detector rejected", func(t *testing.T) {
		_, err := LoadScannerConfig(writeConfig(t, `
symbol: NDX
profile_a:
  name: broken
  enabled_detectors: [dark_pool_prints]
`))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScannerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestBuildOrchestrator(t *testing.T) {
	t.Run("builds a full profile", func(t *testing.T) {
		orchestrator, err := BuildOrchestrator(DefaultProfileConfig("baseline"), pipeline.NewStageCache())
		require.NoError(t, err)
		assert.NotNil(t, orchestrator)
	})

	t.Run("unknown detector fails", func(t *testing.T) {
		profile := DefaultProfileConfig("baseline")
		profile.EnabledDetectors = append(profile.EnabledDetectors, "dark_pool_prints")

		_, err := BuildOrchestrator(profile, pipeline.NewStageCache())
		assert.Error(t, err)
	})

	t.Run("invalid thresholds fail", func(t *testing.T) {
		profile := DefaultProfileConfig("baseline")
		profile.VolumeAnomaly.MinVolOIRatio = -1

		_, err := BuildOrchestrator(profile, pipeline.NewStageCache())
		assert.Error(t, err)
	})
}

func TestCriteria(t *testing.T) {
	criteria := Criteria(DefaultProfileConfig("baseline"))

	assert.Equal(t, 10.0, criteria.MinVolOIRatio)
	assert.Equal(t, 20.0, criteria.ContractMultiplier)
	assert.Equal(t, 0.4, criteria.MinEV)
	assert.InDelta(t, 1.0, criteria.Weights["oi_factor"]+criteria.Weights["vol_factor"]+criteria.Weights["pcr_factor"]+criteria.Weights["distance_factor"], 1e-9)
}
