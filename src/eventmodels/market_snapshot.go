package eventmodels

import (
	"fmt"
	"sort"
	"time"

	"github.com/optionsflow/optionsflow/src/utils"
)

// MarketSnapshot is the immutable unit of work handed to the pipeline: one
// capture of the option chain for a single underlying, plus the quote-update
// window captured at the same instant. Detectors never see anything newer
// than the snapshot they were dispatched with.
type MarketSnapshot struct {
	UnderlyingSymbol string                   `json:"underlying_symbol"`
	CapturedAt       time.Time                `json:"captured_at"`
	Contracts        []OptionContractSnapshot `json:"contracts"`
	Quotes           []QuoteUpdate            `json:"quotes"`

	identity string
}

func NewMarketSnapshot(symbol string, capturedAt time.Time, contracts []OptionContractSnapshot, quotes []QuoteUpdate) (*MarketSnapshot, error) {
	sorted := make([]OptionContractSnapshot, len(contracts))
	copy(sorted, contracts)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Strike != sorted[j].Strike {
			return sorted[i].Strike < sorted[j].Strike
		}

		if sorted[i].OptionType != sorted[j].OptionType {
			return sorted[i].OptionType < sorted[j].OptionType
		}

		return sorted[i].Expiration.Before(sorted[j].Expiration)
	})

	sortedQuotes := make([]QuoteUpdate, len(quotes))
	copy(sortedQuotes, quotes)

	sort.Slice(sortedQuotes, func(i, j int) bool {
		if sortedQuotes[i].InstrumentID != sortedQuotes[j].InstrumentID {
			return sortedQuotes[i].InstrumentID < sortedQuotes[j].InstrumentID
		}

		if !sortedQuotes[i].EventTime.Equal(sortedQuotes[j].EventTime) {
			return sortedQuotes[i].EventTime.Before(sortedQuotes[j].EventTime)
		}

		return sortedQuotes[i].BidSize < sortedQuotes[j].BidSize
	})

	snapshot := &MarketSnapshot{
		UnderlyingSymbol: symbol,
		CapturedAt:       capturedAt,
		Contracts:        sorted,
		Quotes:           sortedQuotes,
	}

	identity, err := utils.HashStruct(struct {
		Symbol     string
		CapturedAt time.Time
		Contracts  []OptionContractSnapshot
		Quotes     []QuoteUpdate
	}{symbol, capturedAt.UTC(), sorted, sortedQuotes})

	if err != nil {
		return nil, fmt.Errorf("NewMarketSnapshot: failed to hash snapshot: %w", err)
	}

	snapshot.identity = identity

	return snapshot, nil
}

// Identity is a stable fingerprint component: two snapshots built from the
// same capture hash to the same identity regardless of record order.
func (s *MarketSnapshot) Identity() string {
	return s.identity
}

func (s *MarketSnapshot) IsEmpty() bool {
	return len(s.Contracts) == 0 && len(s.Quotes) == 0
}
