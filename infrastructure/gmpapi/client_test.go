package gmpapi

import (
	"context"
	"encoding/json"
	"gmptracker/domain"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
	paths  []string
}

func (r *recorder) handler(t *testing.T, status int, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(req.Body)
		body := map[string]interface{}{}
		assert.NoError(t, json.Unmarshal(raw, &body))

		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.paths = append(r.paths, req.URL.Path)
		r.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}
}

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(url, 2*time.Second, 0, 1, zerolog.New(zerolog.NewTestWriter(t)))
}

func TestSearchGMP(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec.handler(t, http.StatusOK, `[
		{"call": {"transactionHash": "0xcall", "logIndex": "0x2", "block_timestamp": 1700000000}, "status": "approved",
		 "gas": {"gas_remain_amount": "0.25"}},
		"garbage"
	]`))
	defer server.Close()

	index := int64(1)
	records := newTestClient(t, server.URL).SearchGMP(context.Background(), domain.SearchParams{TxHash: "0xcall", TxIndex: &index})
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusApproved, records[0].Status)
	assert.EqualValues(t, 2, records[0].Call.LogIndex.V)
	assert.InDelta(t, 0.25, records[0].GasRemain().V, 1e-12)

	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "searchGMP", rec.bodies[0]["method"])
	assert.Equal(t, "0xcall", rec.bodies[0]["txHash"])
	assert.EqualValues(t, 1, rec.bodies[0]["txIndex"])
	_, hasLogIndex := rec.bodies[0]["txLogIndex"]
	assert.False(t, hasLogIndex)
}

func TestSearchGMPWrappedData(t *testing.T) {
	server := httptest.NewServer((&recorder{}).handler(t, http.StatusOK, `{"data": [{"status": "executed"}], "total": 1}`))
	defer server.Close()

	records := newTestClient(t, server.URL).SearchGMP(context.Background(), domain.SearchParams{TxHash: "0xcall"})
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusExecuted, records[0].Status)
}

func TestSearchGMPSwallowsFailures(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		reply  string
	}{
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`},
		{"not json", http.StatusOK, `<html>`},
		{"empty", http.StatusOK, `[]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer((&recorder{}).handler(t, tc.status, tc.reply))
			defer server.Close()

			records := newTestClient(t, server.URL).SearchGMP(context.Background(), domain.SearchParams{TxHash: "0xcall"})
			assert.Empty(t, records)
		})
	}

	// unreachable host
	records := newTestClient(t, "http://127.0.0.1:1").SearchGMP(context.Background(), domain.SearchParams{TxHash: "0xcall"})
	assert.Empty(t, records)
}

func TestSaveGMP(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec.handler(t, http.StatusOK, `{}`))
	defer server.Close()

	logIndex := int64(7)
	err := newTestClient(t, server.URL).SaveGMP(context.Background(), domain.SaveParams{
		SourceTransactionHash:     "0xcall",
		SourceTransactionLogIndex: &logIndex,
		TransactionHash:           "0xexec",
		Event:                     domain.SaveEventReExecute,
	})
	require.NoError(t, err)
	assert.Equal(t, "saveGMP", rec.bodies[0]["method"])
	assert.Equal(t, "0xexec", rec.bodies[0]["transactionHash"])
	assert.Equal(t, "re_execute", rec.bodies[0]["event"])
	assert.EqualValues(t, 7, rec.bodies[0]["sourceTransactionLogIndex"])

	failing := httptest.NewServer((&recorder{}).handler(t, http.StatusBadGateway, ``))
	defer failing.Close()
	err = newTestClient(t, failing.URL).SaveGMP(context.Background(), domain.SaveParams{})
	assert.ErrorIs(t, err, ErrorUnexpectedStatus)
}

func TestExecPost(t *testing.T) {
	for _, tc := range []struct {
		name    string
		reply   string
		success bool
	}{
		{"updated", `{"response": {"result": "updated"}}`, true},
		{"echoed", `{"method": "saveGMP", "event": "to_refund"}`, true},
		{"flat result", `{"result": "updated"}`, true},
		{"rejected", `{"response": {"result": "not_found"}}`, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			server := httptest.NewServer(rec.handler(t, http.StatusOK, tc.reply))
			defer server.Close()

			params := domain.CallTriple(&domain.Event{TransactionHash: "0xcall"})
			params.Event = domain.SaveEventToRefund
			response, err := newTestClient(t, server.URL).ExecPost(context.Background(), "", params)
			require.NoError(t, err)
			assert.Equal(t, tc.success, response.Success)
			assert.Equal(t, "to_refund", rec.bodies[0]["event"])
			assert.Equal(t, "/", rec.paths[0])
		})
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer((&recorder{}).handler(t, http.StatusOK, `[]`))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 0.001, 1, zerolog.Nop())
	client.SearchGMP(context.Background(), domain.SearchParams{TxHash: "0xcall"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.SaveGMP(ctx, domain.SaveParams{})
	assert.Error(t, err)
}
