package asset_test

import (
	"errors"
	"testing"

	"github.com/cryptofolio/position-engine/internal/asset"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"btc", "BTC", false},
		{"  eth ", "ETH", false},
		{"ARB-USDC", "ARB-USDC", false},
		{"TOKEN2049", "TOKEN2049", false},
		{"", "", true},
		{"   ", "", true},
		{"btc coin", "", true},
		{"$BTC", "", true},
		{"AVERYLONGSYMBOLTHATKEEPSGOING", "", true},
	}

	for _, tc := range cases {
		got, err := asset.Normalize(tc.in)
		if tc.wantErr {
			if !errors.Is(err, asset.ErrInvalidSymbol) {
				t.Errorf("Normalize(%q): expected ErrInvalidSymbol, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupFor(t *testing.T) {
	if got := asset.GroupFor("WBTC"); got != "BTC" {
		t.Errorf("GroupFor(WBTC) = %s, want BTC", got)
	}
	if got := asset.GroupFor("STETH"); got != "ETH" {
		t.Errorf("GroupFor(STETH) = %s, want ETH", got)
	}
	if got := asset.GroupFor("SOL"); got != "SOL" {
		t.Errorf("GroupFor(SOL) = %s, want SOL", got)
	}
}
