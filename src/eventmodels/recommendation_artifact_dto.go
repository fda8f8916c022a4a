package eventmodels

import "time"

const RecommendationArtifactSchemaVersion = 2

// RunCriteriaDTO records the thresholds a run was produced with, so
// historical artifacts stay comparable after threshold tuning.
type RunCriteriaDTO struct {
	MinVolOIRatio      float64            `json:"min_vol_oi_ratio"`
	MinVolume          int64              `json:"min_volume"`
	MinDollarSize      float64            `json:"min_dollar_size"`
	ContractMultiplier float64            `json:"contract_multiplier"`
	PressureWindowMin  int                `json:"pressure_window_minutes"`
	MinBidSize         int64              `json:"min_bid_size"`
	MinPressureRatio   float64            `json:"min_pressure_ratio"`
	Weights            map[string]float64 `json:"weights"`
	MinEV              float64            `json:"min_ev"`
	MinProbability     float64            `json:"min_probability"`
	MaxRisk            float64            `json:"max_risk"`
	MinRiskReward      float64            `json:"min_risk_reward"`
}

// RecommendationArtifactDTO is the stable, versioned shape persisted for the
// external report/dashboard writer.
type RecommendationArtifactDTO struct {
	SchemaVersion   int             `json:"schema_version"`
	RunID           string          `json:"run_id"`
	Timestamp       string          `json:"timestamp"`
	CurrentPrice    float64         `json:"current_price"`
	Status          string          `json:"status"`
	Bias            string          `json:"bias"`
	CallDollarFlow  float64         `json:"call_dollar_flow"`
	PutDollarFlow   float64         `json:"put_dollar_flow"`
	Recommendations []*TradePlanDTO `json:"recommendations"`
	Criteria        RunCriteriaDTO  `json:"criteria"`
}

func NewRecommendationArtifactDTO(result *RunResult, criteria RunCriteriaDTO) *RecommendationArtifactDTO {
	artifact := &RecommendationArtifactDTO{
		SchemaVersion: RecommendationArtifactSchemaVersion,
		RunID:         result.RunID,
		Timestamp:     result.FinishedAt.Format(time.RFC3339),
		Status:        string(result.Status),
		Criteria:      criteria,
	}

	if result.Recommendations != nil {
		artifact.CurrentPrice = result.Recommendations.CurrentPrice
		artifact.Bias = string(result.Recommendations.Summary.Bias)
		artifact.CallDollarFlow = result.Recommendations.Summary.CallDollarFlow
		artifact.PutDollarFlow = result.Recommendations.Summary.PutDollarFlow

		for _, plan := range result.Recommendations.Plans {
			artifact.Recommendations = append(artifact.Recommendations, plan.ToDTO())
		}
	}

	return artifact
}
