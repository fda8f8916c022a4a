package eventmodels

import (
	"fmt"
	"time"
)

// Signal is one detector finding. Signals are never mutated after creation;
// CreatedAt is the snapshot capture time so identical inputs produce
// identical signals.
type Signal struct {
	Strike         float64    `json:"strike"`
	OptionType     OptionType `json:"option_type"`
	Direction      Direction  `json:"direction"`
	Confidence     Confidence `json:"confidence"`
	MetricValue    float64    `json:"metric_value"`
	DollarSize     float64    `json:"dollar_size"`
	TargetPrice    float64    `json:"target_price"`
	Volume         int64      `json:"volume"`
	OpenInterest   int64      `json:"open_interest"`
	Expiration     time.Time  `json:"expiration"`
	DetectorSource string     `json:"detector_source"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s Signal) Validate() error {
	if err := s.OptionType.Validate(); err != nil {
		return fmt.Errorf("Signal: Validate: %w", err)
	}

	if err := s.Direction.Validate(); err != nil {
		return fmt.Errorf("Signal: Validate: %w", err)
	}

	if err := s.Confidence.Validate(); err != nil {
		return fmt.Errorf("Signal: Validate: %w", err)
	}

	if s.DetectorSource == "" {
		return fmt.Errorf("Signal: Validate: missing detector source")
	}

	return nil
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %.2f (%s, metric=%.2f, $%.0f)", s.Direction, s.OptionType, s.Strike, s.Confidence, s.MetricValue, s.DollarSize)
}
