package relay

import (
	"context"
	"encoding/json"
	"errors"
	"gmptracker/domain"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newServer(t *testing.T, path string, status int, reply string, got *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			assert.NoError(t, json.Unmarshal(raw, got))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(url, 2*time.Second, 0, 1, zerolog.New(zerolog.NewTestWriter(t)))
}

func TestManualRelayToDestChain(t *testing.T) {
	var got map[string]interface{}
	server := newServer(t, "/manualRelayToDestChain", http.StatusOK,
		`{"success": true, "signCommandTx": {"transactionHash": "0xsign"}}`, &got)
	defer server.Close()

	response, err := newTestClient(t, server.URL).ManualRelayToDestChain(context.Background(), "0xcall")
	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.Equal(t, "0xsign", response.TxHash)
	assert.Equal(t, "0xcall", got["txHash"])
}

func TestExecute(t *testing.T) {
	var got map[string]interface{}
	server := newServer(t, "/execute", http.StatusOK,
		`{"success": false, "error": "execution reverted: not approved"}`, &got)
	defer server.Close()

	response, err := newTestClient(t, server.URL).Execute(context.Background(), "0xcall", 3)
	require.NoError(t, err)
	assert.False(t, response.Success)
	assert.Empty(t, response.TxHash)
	assert.Equal(t, "execution reverted: not approved", response.Error)
	assert.EqualValues(t, 3, got["logIndex"])
}

func TestAddNativeGas(t *testing.T) {
	var got map[string]interface{}
	server := newServer(t, "/addNativeGas", http.StatusOK,
		`{"success": true, "transaction": {"transactionHash": "0xgas"}}`, &got)
	defer server.Close()

	response, err := newTestClient(t, server.URL).AddNativeGas(context.Background(), "ethereum", "0xcall", domain.AddGasOptions{RefundAddress: "0xme"})
	require.NoError(t, err)
	assert.Equal(t, "0xgas", response.TxHash)
	assert.Equal(t, "ethereum", got["chain"])
	assert.Equal(t, "0xme", got["refundAddress"])
}

func TestRelayErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		status  int
		reply   string
		message string
	}{
		{"reason first", http.StatusBadRequest, `{"reason": "already executed", "message": "call failed", "data": {"message": "ignored"}}`, "already executed"},
		{"nested data", http.StatusInternalServerError, `{"error": {"message": "call failed", "data": {"text": "insufficient funds"}}}`, "insufficient funds"},
		{"plain error", http.StatusBadGateway, `{"error": "upstream down"}`, "upstream down"},
		{"empty body", http.StatusServiceUnavailable, ``, "relay api answered 503"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			server := newServer(t, "/manualRelayToDestChain", tc.status, tc.reply, nil)
			defer server.Close()

			_, err := newTestClient(t, server.URL).ManualRelayToDestChain(context.Background(), "0xcall")
			var relayErr *domain.RelayError
			require.True(t, errors.As(err, &relayErr))
			assert.Equal(t, tc.message, relayErr.HumanMessage("generic"))
		})
	}
}

func TestParseResponseErrorObject(t *testing.T) {
	response := parseResponse(gjson.Parse(`{"success": false, "error": {"data": {"message": "gas too low"}}}`))
	assert.Equal(t, "gas too low", response.Error)
}
