// Package asset handles ticker symbol validation, normalization, and the
// display-group aliases that merge economically equivalent variants
// (wrapped or bridged forms) of the same asset.
package asset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches exchange-style tickers: 1–20 characters of
// uppercase letters, digits, or separators, starting with a letter or digit.
// Examples: BTC, WBTC, SOL, ARB-USDC, TOKEN2049.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,19}$`)

var ErrInvalidSymbol = errors.New("asset: invalid symbol")

// defaultAliases maps well-known wrapped/bridged variants to the asset
// they track. Used for display grouping only: the ledger still accounts
// per underlying symbol.
var defaultAliases = map[string]string{
	"WBTC":   "BTC",
	"BTCB":   "BTC",
	"WETH":   "ETH",
	"STETH":  "ETH",
	"WSTETH": "ETH",
	"WSOL":   "SOL",
	"WAVAX":  "AVAX",
	"WMATIC": "MATIC",
}

// Normalize upper-cases and trims a raw symbol and validates its shape.
func Normalize(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return symbol, nil
}

// GroupFor returns the display group for a symbol: the known alias target
// when one exists, otherwise the symbol itself.
func GroupFor(symbol string) string {
	if target, ok := defaultAliases[symbol]; ok {
		return target
	}
	return symbol
}
