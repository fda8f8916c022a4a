package eventmodels

import (
	"fmt"
	"time"
)

// OptionContractSnapshot is one option-chain record as captured by the data
// collaborator. Records are immutable once captured.
type OptionContractSnapshot struct {
	Strike       float64    `json:"strike"`
	OptionType   OptionType `json:"option_type"`
	Volume       int64      `json:"volume"`
	OpenInterest int64      `json:"open_interest"`
	LastPrice    float64    `json:"last_price"`
	Expiration   time.Time  `json:"expiration"`
}

func (c OptionContractSnapshot) Validate() error {
	if err := c.OptionType.Validate(); err != nil {
		return fmt.Errorf("OptionContractSnapshot: Validate: %w", err)
	}

	if c.Strike <= 0 {
		return fmt.Errorf("OptionContractSnapshot: Validate: strike must be positive, found %v", c.Strike)
	}

	if c.Volume < 0 {
		return fmt.Errorf("OptionContractSnapshot: Validate: volume must be non-negative, found %v", c.Volume)
	}

	if c.OpenInterest < 0 {
		return fmt.Errorf("OptionContractSnapshot: Validate: open interest must be non-negative, found %v", c.OpenInterest)
	}

	if c.LastPrice < 0 {
		return fmt.Errorf("OptionContractSnapshot: Validate: last price must be non-negative, found %v", c.LastPrice)
	}

	return nil
}

type OptionContractSnapshotDTO struct {
	Strike       float64 `csv:"strike" json:"strike"`
	OptionType   string  `csv:"option_type" json:"option_type"`
	Volume       int64   `csv:"volume" json:"volume"`
	OpenInterest int64   `csv:"open_interest" json:"open_interest"`
	LastPrice    float64 `csv:"last_price" json:"last_price"`
	Expiration   string  `csv:"expiration" json:"expiration"`
}

func (dto *OptionContractSnapshotDTO) ToModel() (OptionContractSnapshot, error) {
	expiration, err := time.Parse(time.RFC3339, dto.Expiration)
	if err != nil {
		return OptionContractSnapshot{}, fmt.Errorf("OptionContractSnapshotDTO: ToModel: failed to parse expiration: %w", err)
	}

	contract := OptionContractSnapshot{
		Strike:       dto.Strike,
		OptionType:   OptionType(dto.OptionType),
		Volume:       dto.Volume,
		OpenInterest: dto.OpenInterest,
		LastPrice:    dto.LastPrice,
		Expiration:   expiration,
	}

	if err := contract.Validate(); err != nil {
		return OptionContractSnapshot{}, err
	}

	return contract, nil
}

func (c OptionContractSnapshot) ToDTO() *OptionContractSnapshotDTO {
	return &OptionContractSnapshotDTO{
		Strike:       c.Strike,
		OptionType:   string(c.OptionType),
		Volume:       c.Volume,
		OpenInterest: c.OpenInterest,
		LastPrice:    c.LastPrice,
		Expiration:   c.Expiration.Format(time.RFC3339),
	}
}
