package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"gmptracker/domain"
	"gmptracker/interface/exporter"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	pathManualRelay  = "/manualRelayToDestChain"
	pathExecute      = "/execute"
	pathAddNativeGas = "/addNativeGas"

	maxResponseSize = 1 << 20
)

// Paths where a relay answer may carry the transaction hash, by preference.
var txHashPaths = []string{
	"signCommandTx.transactionHash",
	"signCommandTx.txhash",
	"signCommandTx.hash",
	"transaction.transactionHash",
	"transaction.hash",
	"txHash",
}

// Client submits recovery requests to the relay API. Mutating calls are not
// idempotent; callers serialize them per hash.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewClient(url string, timeout time.Duration, requestRate float64, burst int, logger zerolog.Logger) *Client {
	limit := rate.Inf
	if requestRate > 0 {
		limit = rate.Limit(requestRate)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		url:     strings.TrimRight(url, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("component", "relay").Logger(),
	}
}

type manualRelayRequest struct {
	TxHash string `json:"txHash"`
}

type executeRequest struct {
	TxHash   string `json:"txHash"`
	LogIndex int64  `json:"logIndex"`
}

type addNativeGasRequest struct {
	Chain  string `json:"chain"`
	TxHash string `json:"txHash"`
	domain.AddGasOptions
}

func (client *Client) ManualRelayToDestChain(ctx context.Context, txHash string) (domain.RelayResponse, error) {
	return client.submit(ctx, pathManualRelay, manualRelayRequest{TxHash: txHash})
}

func (client *Client) Execute(ctx context.Context, txHash string, logIndex int64) (domain.RelayResponse, error) {
	return client.submit(ctx, pathExecute, executeRequest{TxHash: txHash, LogIndex: logIndex})
}

func (client *Client) AddNativeGas(ctx context.Context, chain, txHash string, options domain.AddGasOptions) (domain.RelayResponse, error) {
	return client.submit(ctx, pathAddNativeGas, addNativeGasRequest{Chain: chain, TxHash: txHash, AddGasOptions: options})
}

func (client *Client) submit(ctx context.Context, path string, payload interface{}) (domain.RelayResponse, error) {
	logger := client.logger.With().Str("path", path).Logger()

	if err := client.limiter.Wait(ctx); err != nil {
		return domain.RelayResponse{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.RelayResponse{}, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.url+path, bytes.NewReader(data))
	if err != nil {
		return domain.RelayResponse{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	logger.Debug().RawJSON("request", data).Msg("🔵 relay request")
	response, err := client.http.Do(request)
	if err != nil {
		exporter.IncErrorCount()
		return domain.RelayResponse{}, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		exporter.IncErrorCount()
		return domain.RelayResponse{}, err
	}
	logger.Debug().Int("status", response.StatusCode).Bytes("response", body).Msg("🔵 relay response")

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		exporter.IncErrorCount()
		return domain.RelayResponse{}, parseError(gjson.ParseBytes(body), response.StatusCode)
	}
	return parseResponse(gjson.ParseBytes(body)), nil
}

func parseResponse(result gjson.Result) domain.RelayResponse {
	response := domain.RelayResponse{Success: result.Get("success").Bool()}
	for _, path := range txHashPaths {
		if hash := result.Get(path).String(); hash != "" {
			response.TxHash = hash
			break
		}
	}
	if e := result.Get("error"); e.Exists() {
		if e.IsObject() {
			response.Error = relayError(e).HumanMessage("")
		} else {
			response.Error = e.String()
		}
	}
	return response
}

// parseError turns a failed HTTP answer into a RelayError, keeping the
// most specific message the body offers.
func parseError(result gjson.Result, status int) error {
	source := result
	if e := result.Get("error"); e.IsObject() {
		source = e
	} else if e.Type == gjson.String && e.String() != "" {
		return &domain.RelayError{Message: e.String()}
	}

	relayErr := relayError(source)
	if relayErr.HumanMessage("") == "" {
		relayErr.Message = fmt.Sprintf("relay api answered %d", status)
	}
	return relayErr
}

func relayError(result gjson.Result) *domain.RelayError {
	relayErr := &domain.RelayError{
		Reason:  result.Get("reason").String(),
		Message: result.Get("message").String(),
	}
	relayErr.Data.Message = result.Get("data.message").String()
	relayErr.Data.Text = result.Get("data.text").String()
	return relayErr
}
