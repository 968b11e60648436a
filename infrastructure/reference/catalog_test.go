package reference

import (
	"gmptracker/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]domain.ChainInfo{
			{ID: "ethereum", Name: "Ethereum", Aliases: []string{"eth-mainnet"}, NativeSymbol: "ETH", NativeDecimals: 18},
			{ID: "osmosis", Name: "Osmosis", ChainType: "cosmos", NativeSymbol: "OSMO", NativeDecimals: 6},
		},
		[]domain.AssetInfo{
			{ID: "uusdc", Symbol: "USDC", Decimals: 6, Symbols: []string{"axlUSDC"}},
		},
	)
}

func TestCatalogChain(t *testing.T) {
	catalog := testCatalog()

	for _, key := range []string{"ethereum", "ETHEREUM", " Ethereum ", "eth-mainnet"} {
		chain, ok := catalog.Chain(key)
		require.True(t, ok, key)
		assert.Equal(t, "ethereum", chain.ID)
	}

	chain, ok := catalog.Chain("osmosis")
	require.True(t, ok)
	assert.Equal(t, 6, chain.NativeDecimals)

	_, ok = catalog.Chain("fantom")
	assert.False(t, ok)

	chains, assets := catalog.Len()
	assert.Equal(t, 2, chains)
	assert.Equal(t, 1, assets)
}

func TestCatalogAsset(t *testing.T) {
	catalog := testCatalog()

	for _, symbol := range []string{"USDC", "usdc", "uusdc", "axlusdc"} {
		asset, ok := catalog.Asset(symbol)
		require.True(t, ok, symbol)
		assert.Equal(t, 6, asset.Decimals)
	}

	_, ok := catalog.Asset("")
	assert.False(t, ok)
	_, ok = catalog.Asset("WETH")
	assert.False(t, ok)
}
