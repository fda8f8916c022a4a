package eventmodels

import "time"

// TradePlan is a scored Signal. Created by the scorer from exactly one
// signal plus market context; read-only thereafter. Plans that fail an
// actionability gate are retained with Actionable=false so near-misses can
// be audited.
type TradePlan struct {
	Signal

	ExpectedValue          float64  `json:"expected_value"`
	Probability            float64  `json:"probability"`
	Risk                   float64  `json:"risk"`
	RiskReward             float64  `json:"risk_reward"`
	Entry                  float64  `json:"entry"`
	Target                 float64  `json:"target"`
	Stop                   float64  `json:"stop"`
	PositionSizeMultiplier float64  `json:"position_size_multiplier"`
	Actionable             bool     `json:"actionable"`
	GateFailures           []string `json:"gate_failures,omitempty"`
}

type TradePlanDTO struct {
	Strike                 float64  `json:"strike"`
	OptionType             string   `json:"option_type"`
	Direction              string   `json:"direction"`
	Confidence             string   `json:"confidence"`
	MetricValue            float64  `json:"metric_value"`
	DollarSize             float64  `json:"dollar_size"`
	TargetPrice            float64  `json:"target_price"`
	Volume                 int64    `json:"volume"`
	OpenInterest           int64    `json:"open_interest"`
	Expiration             string   `json:"expiration"`
	DetectorSource         string   `json:"detector_source"`
	CreatedAt              string   `json:"created_at"`
	ExpectedValue          float64  `json:"expected_value"`
	Probability            float64  `json:"probability"`
	Risk                   float64  `json:"risk"`
	RiskReward             float64  `json:"risk_reward"`
	Entry                  float64  `json:"entry"`
	Target                 float64  `json:"target"`
	Stop                   float64  `json:"stop"`
	PositionSizeMultiplier float64  `json:"position_size_multiplier"`
	Actionable             bool     `json:"actionable"`
	GateFailures           []string `json:"gate_failures,omitempty"`
}

func (p TradePlan) ToDTO() *TradePlanDTO {
	return &TradePlanDTO{
		Strike:                 p.Strike,
		OptionType:             string(p.OptionType),
		Direction:              string(p.Direction),
		Confidence:             string(p.Confidence),
		MetricValue:            p.MetricValue,
		DollarSize:             p.DollarSize,
		TargetPrice:            p.TargetPrice,
		Volume:                 p.Volume,
		OpenInterest:           p.OpenInterest,
		Expiration:             p.Expiration.Format(time.RFC3339),
		DetectorSource:         p.DetectorSource,
		CreatedAt:              p.CreatedAt.Format(time.RFC3339),
		ExpectedValue:          p.ExpectedValue,
		Probability:            p.Probability,
		Risk:                   p.Risk,
		RiskReward:             p.RiskReward,
		Entry:                  p.Entry,
		Target:                 p.Target,
		Stop:                   p.Stop,
		PositionSizeMultiplier: p.PositionSizeMultiplier,
		Actionable:             p.Actionable,
		GateFailures:           p.GateFailures,
	}
}
