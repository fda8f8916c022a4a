package eventmodels

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// FlowSummary aggregates dollar flow by side for one run.
type FlowSummary struct {
	CallDollarFlow float64 `json:"call_dollar_flow"`
	PutDollarFlow  float64 `json:"put_dollar_flow"`
	Bias           Bias    `json:"bias"`
}

// TradingRecommendationSet is the ordered output of one pipeline run.
// Insertion order is rank order, highest expected value first. The set is
// immutable; the next run supersedes it rather than mutating it.
type TradingRecommendationSet struct {
	RunID        string      `json:"run_id"`
	CreatedAt    time.Time   `json:"created_at"`
	CurrentPrice float64     `json:"current_price"`
	Plans        []TradePlan `json:"plans"`
	Summary      FlowSummary `json:"summary"`
}

func (s *TradingRecommendationSet) ActionableCount() int {
	count := 0
	for _, plan := range s.Plans {
		if plan.Actionable {
			count++
		}
	}

	return count
}

func (s *TradingRecommendationSet) String() string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"Rank", "Strike", "Type", "Direction", "Confidence", "EV", "Prob", "R/R", "Dollar Size", "Actionable"})
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnSeparator("")

	display.WriteString(fmt.Sprintf("Recommendations (%s bias, calls $%s vs puts $%s):\n",
		s.Summary.Bias,
		p.Sprintf("%.0f", s.Summary.CallDollarFlow),
		p.Sprintf("%.0f", s.Summary.PutDollarFlow)))

	for i, plan := range s.Plans {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			p.Sprintf("%.2f", plan.Strike),
			string(plan.OptionType),
			string(plan.Direction),
			string(plan.Confidence),
			fmt.Sprintf("%.3f", plan.ExpectedValue),
			fmt.Sprintf("%.2f", plan.Probability),
			fmt.Sprintf("%.2f", plan.RiskReward),
			fmt.Sprintf("$%s", p.Sprintf("%.0f", plan.DollarSize)),
			fmt.Sprintf("%v", plan.Actionable),
		})
	}

	table.Render()
	return display.String()
}
