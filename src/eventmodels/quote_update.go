package eventmodels

import (
	"fmt"
	"time"
)

// QuoteUpdate is one top-of-book update for a single instrument. Updates are
// streamed and ordered by EventTime per instrument.
type QuoteUpdate struct {
	InstrumentID string    `json:"instrument_id"`
	BidSize      int64     `json:"bid_size"`
	AskSize      int64     `json:"ask_size"`
	BidPrice     float64   `json:"bid_price"`
	AskPrice     float64   `json:"ask_price"`
	EventTime    time.Time `json:"event_time"`
}

func (q QuoteUpdate) Validate() error {
	if q.InstrumentID == "" {
		return fmt.Errorf("QuoteUpdate: Validate: missing instrument id")
	}

	if q.BidSize < 0 || q.AskSize < 0 {
		return fmt.Errorf("QuoteUpdate: Validate: sizes must be non-negative, found bid=%v ask=%v", q.BidSize, q.AskSize)
	}

	if q.BidPrice < 0 || q.AskPrice < 0 {
		return fmt.Errorf("QuoteUpdate: Validate: prices must be non-negative, found bid=%v ask=%v", q.BidPrice, q.AskPrice)
	}

	if q.EventTime.IsZero() {
		return fmt.Errorf("QuoteUpdate: Validate: missing event time")
	}

	return nil
}

type QuoteUpdateDTO struct {
	InstrumentID string  `json:"instrument_id"`
	BidSize      int64   `json:"bid_size"`
	AskSize      int64   `json:"ask_size"`
	BidPrice     float64 `json:"bid_price"`
	AskPrice     float64 `json:"ask_price"`
	EventTime    string  `json:"event_time"`
}

func (dto *QuoteUpdateDTO) ToModel() (QuoteUpdate, error) {
	eventTime, err := time.Parse(time.RFC3339, dto.EventTime)
	if err != nil {
		return QuoteUpdate{}, fmt.Errorf("QuoteUpdateDTO: ToModel: failed to parse event time: %w", err)
	}

	update := QuoteUpdate{
		InstrumentID: dto.InstrumentID,
		BidSize:      dto.BidSize,
		AskSize:      dto.AskSize,
		BidPrice:     dto.BidPrice,
		AskPrice:     dto.AskPrice,
		EventTime:    eventTime,
	}

	if err := update.Validate(); err != nil {
		return QuoteUpdate{}, err
	}

	return update, nil
}
