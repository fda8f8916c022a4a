package eventmodels

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type OptionSymbol string

// OptionSymbolComponents holds parsed option details
type OptionSymbolComponents struct {
	Underlying  string
	Expiration  time.Time
	OptionType  string
	StrikePrice float64
	Symbol      OptionSymbol
}

func (s OptionSymbol) NoPrefix() string {
	if strings.HasPrefix(string(s), "O:") {
		return string(s)[2:]
	}

	return string(s)
}

func NewOptionSymbol(option OptionSymbolComponents) (OptionSymbol, error) {
	// Validate the option type
	if option.OptionType != "C" && option.OptionType != "P" {
		return "", fmt.Errorf("invalid option type: %s", option.OptionType)
	}

	// Format the expiration date components
	year := option.Expiration.Year() % 100 // last two digits of the year
	month := int(option.Expiration.Month())
	day := option.Expiration.Day()

	// Format the strike price to 8 digits
	strikePrice := fmt.Sprintf("%08d", int(option.StrikePrice*1000))

	// Construct the option ticker
	ticker := fmt.Sprintf("%s%02d%02d%02d%s%s",
		option.Underlying, year, month, day, option.OptionType, strikePrice)

	return OptionSymbol(ticker), nil
}

// NewOptionSymbolComponents reverses NewOptionSymbol: it splits an OCC-style
// ticker like SPX240920C05000000 back into its parts.
func NewOptionSymbolComponents(symbol OptionSymbol) (*OptionSymbolComponents, error) {
	ticker := symbol.NoPrefix()

	// the tail is: YYMMDD + C/P + 8-digit strike
	if len(ticker) < 15 {
		return nil, fmt.Errorf("NewOptionSymbolComponents: ticker too short: %s", ticker)
	}

	tail := ticker[len(ticker)-15:]
	underlying := ticker[:len(ticker)-15]

	if underlying == "" || !isAlpha(underlying) {
		return nil, fmt.Errorf("NewOptionSymbolComponents: invalid underlying in ticker: %s", ticker)
	}

	expiration, err := time.Parse("060102", tail[:6])
	if err != nil {
		return nil, fmt.Errorf("NewOptionSymbolComponents: failed to parse expiration from %s: %w", ticker, err)
	}

	optionType := string(tail[6])
	if optionType != "C" && optionType != "P" {
		return nil, fmt.Errorf("NewOptionSymbolComponents: invalid option type in ticker: %s", ticker)
	}

	strikeThousandths, err := strconv.Atoi(tail[7:])
	if err != nil {
		return nil, fmt.Errorf("NewOptionSymbolComponents: failed to parse strike from %s: %w", ticker, err)
	}

	return &OptionSymbolComponents{
		Underlying:  underlying,
		Expiration:  expiration,
		OptionType:  optionType,
		StrikePrice: float64(strikeThousandths) / 1000,
		Symbol:      symbol,
	}, nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}

	return true
}
