package scoring

import (
	"fmt"
	"math"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// MarketContext is the price context a signal is scored against. Built once
// per snapshot by the pipeline.
type MarketContext struct {
	CurrentPrice float64
	PutCallRatio float64
}

// NewMarketContext derives the put/call volume ratio from the snapshot.
func NewMarketContext(snapshot *eventmodels.MarketSnapshot, currentPrice float64) MarketContext {
	var callVolume, putVolume int64

	for _, contract := range snapshot.Contracts {
		switch contract.OptionType {
		case eventmodels.OptionTypeCall:
			callVolume += contract.Volume
		case eventmodels.OptionTypePut:
			putVolume += contract.Volume
		}
	}

	pcr := 1.0
	if callVolume > 0 {
		pcr = float64(putVolume) / float64(callVolume)
	}

	return MarketContext{
		CurrentPrice: currentPrice,
		PutCallRatio: pcr,
	}
}

type ScorerConfig struct {
	Weights            FactorWeights `yaml:"weights" json:"weights"`
	MinEV              float64       `yaml:"min_ev" json:"min_ev"`
	MinProbability     float64       `yaml:"min_probability" json:"min_probability"`
	MaxRisk            float64       `yaml:"max_risk" json:"max_risk"`
	MinRiskReward      float64       `yaml:"min_risk_reward" json:"min_risk_reward"`
	StopLossPercent    float64       `yaml:"stop_loss_percent" json:"stop_loss_percent"`
	OINormalization    float64       `yaml:"oi_normalization" json:"oi_normalization"`
	VolNormalization   float64       `yaml:"vol_normalization" json:"vol_normalization"`
	MaxDistancePercent float64       `yaml:"max_distance_percent" json:"max_distance_percent"`
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:            DefaultFactorWeights(),
		MinEV:              0.4,
		MinProbability:     0.45,
		MaxRisk:            0.05,
		MinRiskReward:      1.5,
		StopLossPercent:    0.01,
		OINormalization:    10_000,
		VolNormalization:   5_000,
		MaxDistancePercent: 0.05,
	}
}

func (c ScorerConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}

	if c.MinProbability < 0 || c.MinProbability > 1 {
		return eventmodels.NewConfigurationError("min_probability", fmt.Sprintf("must be in [0,1], found %v", c.MinProbability))
	}

	if c.StopLossPercent <= 0 {
		return eventmodels.NewConfigurationError("stop_loss_percent", fmt.Sprintf("must be positive, found %v", c.StopLossPercent))
	}

	if c.OINormalization <= 0 || c.VolNormalization <= 0 {
		return eventmodels.NewConfigurationError("normalization", "oi and volume normalization must be positive")
	}

	if c.MaxDistancePercent <= 0 {
		return eventmodels.NewConfigurationError("max_distance_percent", fmt.Sprintf("must be positive, found %v", c.MaxDistancePercent))
	}

	return nil
}

// Scorer turns signals into trade plans via a weighted four-factor score.
type Scorer struct {
	config ScorerConfig
}

func NewScorer(config ScorerConfig) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewScorer: %w", err)
	}

	return &Scorer{config: config}, nil
}

func (s *Scorer) Config() ScorerConfig {
	return s.config
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Score combines the open-interest, volume, put/call-ratio and
// distance-to-price factors into an expected value, then derives the
// probability, risk profile and actionability gates. Plans failing a gate
// are flagged non-actionable but retained for audit.
func (s *Scorer) Score(signal eventmodels.Signal, ctx MarketContext) eventmodels.TradePlan {
	oiFactor := clamp01(float64(signal.OpenInterest) / s.config.OINormalization)
	volFactor := clamp01(float64(signal.Volume) / s.config.VolNormalization)

	// a low put/call ratio supports longs, a high one supports shorts
	pcrFactor := clamp01(1 - ctx.PutCallRatio/2)
	if signal.Direction == eventmodels.DirectionShort {
		pcrFactor = clamp01(ctx.PutCallRatio / 2)
	}

	distancePct := math.Abs(signal.Strike-ctx.CurrentPrice) / ctx.CurrentPrice
	distanceFactor := clamp01(1 - distancePct/s.config.MaxDistancePercent)

	w := s.config.Weights
	expectedValue := w.OIFactor*oiFactor + w.VolumeFactor*volFactor + w.PCRFactor*pcrFactor + w.DistanceFactor*distanceFactor

	// monotone mapping of the combined score into [0,1], clipped at the
	// bounds
	probability := clamp01(0.2 + 0.6*expectedValue)

	entry := ctx.CurrentPrice
	target := signal.TargetPrice

	var stop float64
	if signal.Direction == eventmodels.DirectionLong {
		stop = entry * (1 - s.config.StopLossPercent)
	} else {
		stop = entry * (1 + s.config.StopLossPercent)
	}

	risk := math.Abs(entry-stop) / entry

	riskReward := 0.0
	if math.Abs(entry-stop) > 0 {
		riskReward = math.Abs(target-entry) / math.Abs(entry-stop)
	}

	plan := eventmodels.TradePlan{
		Signal:                 signal,
		ExpectedValue:          expectedValue,
		Probability:            probability,
		Risk:                   risk,
		RiskReward:             riskReward,
		Entry:                  entry,
		Target:                 target,
		Stop:                   stop,
		PositionSizeMultiplier: positionSizeMultiplier(signal.Confidence),
	}

	var gateFailures []string

	if plan.ExpectedValue < s.config.MinEV {
		gateFailures = append(gateFailures, fmt.Sprintf("expected_value %.3f below min_ev %.3f", plan.ExpectedValue, s.config.MinEV))
	}

	if plan.Probability < s.config.MinProbability {
		gateFailures = append(gateFailures, fmt.Sprintf("probability %.3f below min_probability %.3f", plan.Probability, s.config.MinProbability))
	}

	if plan.Risk > s.config.MaxRisk {
		gateFailures = append(gateFailures, fmt.Sprintf("risk %.3f above max_risk %.3f", plan.Risk, s.config.MaxRisk))
	}

	if plan.RiskReward < s.config.MinRiskReward {
		gateFailures = append(gateFailures, fmt.Sprintf("risk_reward %.2f below min_risk_reward %.2f", plan.RiskReward, s.config.MinRiskReward))
	}

	plan.GateFailures = gateFailures
	plan.Actionable = len(gateFailures) == 0

	return plan
}

func positionSizeMultiplier(confidence eventmodels.Confidence) float64 {
	switch confidence {
	case eventmodels.ConfidenceExtreme:
		return 2.0
	case eventmodels.ConfidenceVeryHigh:
		return 1.5
	case eventmodels.ConfidenceHigh:
		return 1.0
	default:
		return 0.5
	}
}
