package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// PolygonFetcher is the upstream data collaborator: it pulls option-chain
// snapshots and the current underlying price on demand. Absence of data is
// a valid, non-fatal return (empty snapshot), not an error.
type PolygonFetcher struct {
	client *polygon.Client
	apiKey string
}

func NewPolygonFetcher(apiKey string) *PolygonFetcher {
	return &PolygonFetcher{
		client: polygon.New(apiKey),
		apiKey: apiKey,
	}
}

// FetchCurrentPrice returns the latest daily close for the underlying.
func (f *PolygonFetcher) FetchCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	now := time.Now().UTC()

	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   "day",
		From:       models.Millis(now.AddDate(0, 0, -7)),
		To:         models.Millis(now),
	}.WithOrder(models.Desc).WithAdjusted(true)

	iter := f.client.ListAggs(ctx, params)

	if iter.Next() {
		return iter.Item().Close, nil
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("PolygonFetcher.FetchCurrentPrice: failed to fetch aggs for %s: %w", symbol, err)
	}

	return 0, fmt.Errorf("PolygonFetcher.FetchCurrentPrice: no aggregates returned for %s", symbol)
}

type polygonChainContractDTO struct {
	Details struct {
		StrikePrice    float64 `json:"strike_price"`
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
	} `json:"details"`
	Day struct {
		Volume int64   `json:"volume"`
		Close  float64 `json:"close"`
	} `json:"day"`
	OpenInterest int64 `json:"open_interest"`
}

type polygonChainResponseDTO struct {
	Results []polygonChainContractDTO `json:"results"`
	NextURL *string                   `json:"next_url"`
}

// FetchOptionChain pulls the option-chain snapshot for the underlying. The
// chain snapshot endpoint is not covered by the rest client, so this calls
// it directly.
func (f *PolygonFetcher) FetchOptionChain(ctx context.Context, symbol string) ([]eventmodels.OptionContractSnapshot, error) {
	parsedURL, err := url.Parse("https://api.polygon.io/v3/snapshot/options")
	if err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchOptionChain: failed to parse base URL: %w", err)
	}

	parsedURL.Path = path.Join(parsedURL.Path, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchOptionChain: failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("limit", "250")
	q.Add("apiKey", f.apiKey)

	req.URL.RawQuery = q.Encode()
	req.Header.Add("Accept", "application/json")

	log.Debugf("fetching option chain from %v", req.URL.Path)

	client := http.Client{
		Timeout: 10 * time.Second,
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchOptionChain: failed to fetch chain: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		// no chain for this underlying is valid, not an error
		return nil, nil
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PolygonFetcher.FetchOptionChain: failed to fetch chain, http code %v", res.Status)
	}

	var dto polygonChainResponseDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchOptionChain: failed to decode json: %w", err)
	}

	if dto.NextURL != nil {
		log.Warnf("PolygonFetcher.FetchOptionChain: next url: %v", *dto.NextURL)
	}

	var contracts []eventmodels.OptionContractSnapshot
	skipped := 0

	for _, result := range dto.Results {
		expiration, parseErr := time.Parse("2006-01-02", result.Details.ExpirationDate)
		if parseErr != nil {
			skipped++
			continue
		}

		contract := eventmodels.OptionContractSnapshot{
			Strike:       result.Details.StrikePrice,
			OptionType:   eventmodels.OptionType(result.Details.ContractType),
			Volume:       result.Day.Volume,
			OpenInterest: result.OpenInterest,
			LastPrice:    result.Day.Close,
			Expiration:   expiration,
		}

		if err := contract.Validate(); err != nil {
			skipped++
			continue
		}

		contracts = append(contracts, contract)
	}

	if skipped > 0 {
		log.Warnf("PolygonFetcher.FetchOptionChain: skipped %d malformed contracts for %s", skipped, symbol)
	}

	return contracts, nil
}
