package domain

import "strings"

type ChainInfo struct {
	ID             string   `json:"id" mapstructure:"id"`
	Name           string   `json:"name" mapstructure:"name"`
	ChainType      string   `json:"chain_type" mapstructure:"chain_type"`
	Aliases        []string `json:"aliases" mapstructure:"aliases"`
	NativeSymbol   string   `json:"native_symbol" mapstructure:"native_symbol"`
	NativeDecimals int      `json:"native_decimals" mapstructure:"native_decimals"`
}

type AssetInfo struct {
	ID       string   `json:"id" mapstructure:"id"`
	Symbol   string   `json:"symbol" mapstructure:"symbol"`
	Decimals int      `json:"decimals" mapstructure:"decimals"`
	Symbols  []string `json:"symbols" mapstructure:"symbols"`
}

// Matches reports whether the asset is known under the given symbol.
func (a AssetInfo) Matches(symbol string) bool {
	if strings.EqualFold(a.Symbol, symbol) || strings.EqualFold(a.ID, symbol) {
		return true
	}
	for _, s := range a.Symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// ReferenceData is the read-only chain and asset catalog.
type ReferenceData interface {
	Chain(id string) (ChainInfo, bool)
	Asset(symbol string) (AssetInfo, bool)
}
