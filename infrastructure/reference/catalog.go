package reference

import (
	"gmptracker/domain"
	"strings"
)

// Catalog is a read-only chain and asset catalog loaded once from
// configuration. Lookups are case insensitive.
type Catalog struct {
	chains map[string]domain.ChainInfo
	assets []domain.AssetInfo
}

func NewCatalog(chains []domain.ChainInfo, assets []domain.AssetInfo) *Catalog {
	catalog := &Catalog{
		chains: make(map[string]domain.ChainInfo, len(chains)),
		assets: append([]domain.AssetInfo(nil), assets...),
	}
	for _, chain := range chains {
		keys := append([]string{chain.ID, chain.Name}, chain.Aliases...)
		for _, key := range keys {
			key = strings.ToLower(strings.TrimSpace(key))
			if key == "" {
				continue
			}
			// the first chain claiming a key keeps it
			if _, exist := catalog.chains[key]; !exist {
				catalog.chains[key] = chain
			}
		}
	}
	return catalog
}

func (catalog *Catalog) Chain(id string) (domain.ChainInfo, bool) {
	chain, exist := catalog.chains[strings.ToLower(strings.TrimSpace(id))]
	return chain, exist
}

func (catalog *Catalog) Asset(symbol string) (domain.AssetInfo, bool) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.AssetInfo{}, false
	}
	for _, asset := range catalog.assets {
		if asset.Matches(symbol) {
			return asset, true
		}
	}
	return domain.AssetInfo{}, false
}

func (catalog *Catalog) Len() (chains, assets int) {
	seen := map[string]bool{}
	for _, chain := range catalog.chains {
		seen[chain.ID] = true
	}
	return len(seen), len(catalog.assets)
}
