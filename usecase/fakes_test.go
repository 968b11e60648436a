package usecase

import (
	"context"
	"gmptracker/domain"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeQuery struct {
	mu       sync.Mutex
	records  map[string][]domain.GMPRecord
	searches []domain.SearchParams
	saves    []domain.SaveParams
	posts    []domain.SaveParams
	saveErr  error
	refund   domain.RefundResponse
	postErr  error

	// searches of blockHash wait on gate
	blockHash string
	gate      chan struct{}
	saveGate  chan struct{}
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{records: map[string][]domain.GMPRecord{}}
}

func (q *fakeQuery) set(txHash string, records ...domain.GMPRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records[strings.ToLower(txHash)] = records
}

func (q *fakeQuery) SearchGMP(ctx context.Context, params domain.SearchParams) []domain.GMPRecord {
	q.mu.Lock()
	q.searches = append(q.searches, params)
	gate := q.gate
	blocked := gate != nil && strings.EqualFold(q.blockHash, params.TxHash)
	q.mu.Unlock()

	if blocked {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	records := q.records[strings.ToLower(params.TxHash)]
	out := make([]domain.GMPRecord, len(records))
	copy(out, records)
	return out
}

func (q *fakeQuery) SaveGMP(ctx context.Context, params domain.SaveParams) error {
	q.mu.Lock()
	q.saves = append(q.saves, params)
	gate := q.saveGate
	err := q.saveErr
	q.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (q *fakeQuery) ExecPost(ctx context.Context, path string, params domain.SaveParams) (domain.RefundResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.posts = append(q.posts, params)
	return q.refund, q.postErr
}

func (q *fakeQuery) searchCount(txHash string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, s := range q.searches {
		if strings.EqualFold(s.TxHash, txHash) {
			n++
		}
	}
	return n
}

func (q *fakeQuery) savedParams() []domain.SaveParams {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.SaveParams(nil), q.saves...)
}

type fakeRelay struct {
	mu       sync.Mutex
	calls    []domain.Action
	response domain.RelayResponse
	err      error
	gate     chan struct{}
}

func (r *fakeRelay) record(ctx context.Context, action domain.Action) (domain.RelayResponse, error) {
	r.mu.Lock()
	r.calls = append(r.calls, action)
	gate := r.gate
	response, err := r.response, r.err
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.RelayResponse{}, ctx.Err()
		}
	}
	return response, err
}

func (r *fakeRelay) ManualRelayToDestChain(ctx context.Context, txHash string) (domain.RelayResponse, error) {
	return r.record(ctx, domain.ActionApprove)
}

func (r *fakeRelay) Execute(ctx context.Context, txHash string, logIndex int64) (domain.RelayResponse, error) {
	return r.record(ctx, domain.ActionExecute)
}

func (r *fakeRelay) AddNativeGas(ctx context.Context, chain, txHash string, options domain.AddGasOptions) (domain.RelayResponse, error) {
	return r.record(ctx, domain.ActionAddGas)
}

func (r *fakeRelay) count(action domain.Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.calls {
		if a == action {
			n++
		}
	}
	return n
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *memoryJournal) Insert(entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *memoryJournal) FindByTxHash(txHash string, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := []domain.JournalEntry{}
	for _, e := range j.entries {
		if e.TxHash == txHash {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.WarnLevel)
}

func testServices(t *testing.T, query *fakeQuery, relay *fakeRelay, journal JournalRepository) Services {
	logger := testLogger(t)
	return Services{
		Query:       query,
		Relay:       relay,
		Links:       NewLinkResolver(query, logger),
		Corrections: NewCorrectionSubmitter(query, logger),
		Journal:     NewJournalInteractor(journal, logger),
	}
}

func testOptions(editable bool) TrackerOptions {
	return TrackerOptions{
		PollInterval:   time.Hour,
		RequestTimeout: 5 * time.Second,
		SettleDelay:    NoDelay,
		ChainDelay:     NoDelay,
		Editable:       editable,
		Now:            func() time.Time { return testNow },
	}
}
