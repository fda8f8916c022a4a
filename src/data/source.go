package data

import (
	"context"
	"fmt"
	"time"

	"github.com/optionsflow/optionsflow/src/detectors"
	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// LiveSource builds pipeline snapshots on demand from the polygon chain
// fetcher plus the live quote window. It satisfies the experiment
// coordinator's DataSource contract.
type LiveSource struct {
	fetcher *PolygonFetcher
	tracker *detectors.QuoteWindowTracker
	symbol  string
}

func NewLiveSource(fetcher *PolygonFetcher, tracker *detectors.QuoteWindowTracker, symbol string) *LiveSource {
	return &LiveSource{
		fetcher: fetcher,
		tracker: tracker,
		symbol:  symbol,
	}
}

func (s *LiveSource) Next(ctx context.Context) (*eventmodels.MarketSnapshot, float64, error) {
	currentPrice, err := s.fetcher.FetchCurrentPrice(ctx, s.symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("LiveSource.Next: failed to fetch current price: %w", err)
	}

	contracts, err := s.fetcher.FetchOptionChain(ctx, s.symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("LiveSource.Next: failed to fetch option chain: %w", err)
	}

	var quotes []eventmodels.QuoteUpdate
	if s.tracker != nil {
		quotes = s.tracker.Capture()
	}

	snapshot, err := eventmodels.NewMarketSnapshot(s.symbol, time.Now().UTC(), contracts, quotes)
	if err != nil {
		return nil, 0, fmt.Errorf("LiveSource.Next: failed to build snapshot: %w", err)
	}

	return snapshot, currentPrice, nil
}

// ReplaySource serves one CSV capture over and over, which is enough to
// exercise both profiles of an experiment offline.
type ReplaySource struct {
	symbol       string
	currentPrice float64
	contracts    []eventmodels.OptionContractSnapshot
}

func NewReplaySource(inDir, symbol string, currentPrice float64) (*ReplaySource, error) {
	contracts, err := LoadSnapshotCSV(inDir)
	if err != nil {
		return nil, fmt.Errorf("NewReplaySource: %w", err)
	}

	return &ReplaySource{
		symbol:       symbol,
		currentPrice: currentPrice,
		contracts:    contracts,
	}, nil
}

func (s *ReplaySource) Next(ctx context.Context) (*eventmodels.MarketSnapshot, float64, error) {
	snapshot, err := eventmodels.NewMarketSnapshot(s.symbol, time.Now().UTC(), s.contracts, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("ReplaySource.Next: failed to build snapshot: %w", err)
	}

	return snapshot, s.currentPrice, nil
}
