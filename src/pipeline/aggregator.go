package pipeline

import (
	"sort"
	"time"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// one side must carry more than 60% of dollar flow to call a direction
const directionalFlowBand = 0.6

type dedupeKey struct {
	strike         float64
	optionType     eventmodels.OptionType
	detectorSource string
}

// Aggregate merges the trade plans of all surviving stages into a ranked
// recommendation set. Output is deterministic given the set of stage
// results: duplicates per (strike, option type, detector) keep the higher
// expected value, and the sort is total-ordered so arrival order never
// shows through.
func Aggregate(runID string, createdAt time.Time, currentPrice float64, plans []eventmodels.TradePlan) *eventmodels.TradingRecommendationSet {
	deduped := make(map[dedupeKey]eventmodels.TradePlan)

	for _, plan := range plans {
		key := dedupeKey{
			strike:         plan.Strike,
			optionType:     plan.OptionType,
			detectorSource: plan.DetectorSource,
		}

		existing, found := deduped[key]
		if !found || plan.ExpectedValue > existing.ExpectedValue {
			deduped[key] = plan
		}
	}

	merged := make([]eventmodels.TradePlan, 0, len(deduped))
	for _, plan := range deduped {
		merged = append(merged, plan)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ExpectedValue != merged[j].ExpectedValue {
			return merged[i].ExpectedValue > merged[j].ExpectedValue
		}

		if merged[i].Probability != merged[j].Probability {
			return merged[i].Probability > merged[j].Probability
		}

		if merged[i].Confidence.Rank() != merged[j].Confidence.Rank() {
			return merged[i].Confidence.Rank() > merged[j].Confidence.Rank()
		}

		// final tie-breaks keep the ordering total
		if merged[i].Strike != merged[j].Strike {
			return merged[i].Strike < merged[j].Strike
		}

		if merged[i].OptionType != merged[j].OptionType {
			return merged[i].OptionType < merged[j].OptionType
		}

		return merged[i].DetectorSource < merged[j].DetectorSource
	})

	return &eventmodels.TradingRecommendationSet{
		RunID:        runID,
		CreatedAt:    createdAt,
		CurrentPrice: currentPrice,
		Plans:        merged,
		Summary:      summarizeFlow(merged),
	}
}

func summarizeFlow(plans []eventmodels.TradePlan) eventmodels.FlowSummary {
	summary := eventmodels.FlowSummary{Bias: eventmodels.BiasNeutral}

	for _, plan := range plans {
		switch plan.OptionType {
		case eventmodels.OptionTypeCall:
			summary.CallDollarFlow += plan.DollarSize
		case eventmodels.OptionTypePut:
			summary.PutDollarFlow += plan.DollarSize
		}
	}

	total := summary.CallDollarFlow + summary.PutDollarFlow
	if total == 0 {
		return summary
	}

	if summary.CallDollarFlow/total > directionalFlowBand {
		summary.Bias = eventmodels.BiasBullish
	} else if summary.PutDollarFlow/total > directionalFlowBand {
		summary.Bias = eventmodels.BiasBearish
	}

	return summary
}
