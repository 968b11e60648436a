package usecase

import (
	"context"
	"gmptracker/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LinkResolver looks up the records correlated to a primary one: the return
// leg of a two-way call, and for a return leg the call that triggered it.
type LinkResolver struct {
	query  QueryClient
	logger zerolog.Logger
}

func NewLinkResolver(query QueryClient, logger zerolog.Logger) *LinkResolver {
	return &LinkResolver{
		query:  query,
		logger: logger.With().Str("component", "links").Logger(),
	}
}

func (resolver *LinkResolver) Fetch(ctx context.Context, record *domain.GMPRecord) domain.Links {
	var links domain.Links
	if record == nil {
		return links
	}

	g, ctx := errgroup.WithContext(ctx)
	if callback := record.Callback; callback != nil && callback.TransactionHash != "" {
		g.Go(func() error {
			links.Callback = resolver.callback(ctx, callback)
			return nil
		})
	}
	if needsOrigin(record) {
		g.Go(func() error {
			links.Origin = resolver.origin(ctx, record.Call.TransactionHash)
			return nil
		})
	}
	_ = g.Wait()
	return links
}

func (resolver *LinkResolver) callback(ctx context.Context, callback *domain.Event) *domain.GMPRecord {
	params := domain.SearchParams{TxHash: callback.TransactionHash}
	if callback.TransactionIndex.Valid {
		v := callback.TransactionIndex.V
		params.TxIndex = &v
	}
	if callback.LogIndex.Valid {
		v := callback.LogIndex.V
		params.TxLogIndex = &v
	}
	records := resolver.query.SearchGMP(ctx, params)
	for i := range records {
		if records[i].Call != nil && domain.EqualHash(records[i].Call.TransactionHash, callback.TransactionHash) {
			resolver.logger.Debug().Str("tx", callback.TransactionHash).Msg("🔗 callback found")
			return &records[i]
		}
	}
	return nil
}

// needsOrigin is true for a return leg: a call nobody paid gas for directly,
// funded by the first leg or sent by the relayer.
func needsOrigin(record *domain.GMPRecord) bool {
	return record.Call != nil &&
		record.Call.TransactionHash != "" &&
		record.GasPaid == nil &&
		(record.GasPaidToCallback != nil || domain.IsTrue(record.IsCallFromRelayer))
}

func (resolver *LinkResolver) origin(ctx context.Context, callHash string) *domain.GMPRecord {
	records := resolver.query.SearchGMP(ctx, domain.SearchParams{TxHash: callHash})
	for i := range records {
		if records[i].Executed != nil && domain.EqualHash(records[i].Executed.TransactionHash, callHash) {
			resolver.logger.Debug().Str("tx", callHash).Msg("🔗 origin found")
			return &records[i]
		}
	}
	return nil
}
