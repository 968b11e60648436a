package usecase

import (
	"context"
	"gmptracker/domain"
)

// QueryClient talks to the indexing API. SearchGMP never fails: transport
// errors come back as an empty result, which reads as "not indexed yet".
type QueryClient interface {
	SearchGMP(ctx context.Context, params domain.SearchParams) []domain.GMPRecord
	SaveGMP(ctx context.Context, params domain.SaveParams) error
	ExecPost(ctx context.Context, path string, params domain.SaveParams) (domain.RefundResponse, error)
}

// RelayClient submits recovery transactions through the relay network.
type RelayClient interface {
	ManualRelayToDestChain(ctx context.Context, txHash string) (domain.RelayResponse, error)
	Execute(ctx context.Context, txHash string, logIndex int64) (domain.RelayResponse, error)
	AddNativeGas(ctx context.Context, chain, txHash string, options domain.AddGasOptions) (domain.RelayResponse, error)
}
