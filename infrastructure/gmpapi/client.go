package gmpapi

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
	methodSearchGMP = "searchGMP"
	methodSaveGMP   = "saveGMP"

	maxResponseSize = 8 << 20
)

var (
	ErrorUnexpectedStatus = fmt.Errorf("unexpected status from gmp api")
)

// Client talks to the GMP query API: one endpoint, a JSON body and a
// "method" field selecting the operation.
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
		logger:  logger.With().Str("component", "gmpapi").Logger(),
	}
}

type searchRequest struct {
	Method string `json:"method"`
	domain.SearchParams
}

// SearchGMP never fails: transport and decoding errors are logged and read as
// an empty result.
func (client *Client) SearchGMP(ctx context.Context, params domain.SearchParams) []domain.GMPRecord {
	body, err := client.post(ctx, client.url, searchRequest{Method: methodSearchGMP, SearchParams: params})
	if err != nil {
		client.logger.Warn().Err(err).Str("tx", params.TxHash).Msg("🟡 searching gmp")
		exporter.IncErrorCount()
		return nil
	}
	return decodeRecords(body, client.logger)
}

// decodeRecords accepts a bare array or an object with a "data" array, and
// skips the entries that do not decode.
func decodeRecords(body []byte, logger zerolog.Logger) []domain.GMPRecord {
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		result = result.Get("data")
	}
	if !result.IsArray() {
		return nil
	}

	items := result.Array()
	records := make([]domain.GMPRecord, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		var record domain.GMPRecord
		if err := json.Unmarshal([]byte(item.Raw), &record); err != nil {
			logger.Warn().Err(err).Msg("🟡 skipping undecodable gmp record")
			continue
		}
		records = append(records, record)
	}
	return records
}

func (client *Client) SaveGMP(ctx context.Context, params domain.SaveParams) error {
	params.Method = methodSaveGMP
	_, err := client.post(ctx, client.url, params)
	if err != nil {
		exporter.IncErrorCount()
	}
	return err
}

// ExecPost posts to a sub path of the API. The answer echoes the request in
// varying shapes; success is a "response.result" of "updated" or an echoed
// "to_refund" event.
func (client *Client) ExecPost(ctx context.Context, path string, params domain.SaveParams) (domain.RefundResponse, error) {
	if params.Method == "" {
		params.Method = methodSaveGMP
	}
	url := client.url
	if path = strings.Trim(path, "/"); path != "" {
		url = url + "/" + path
	}

	body, err := client.post(ctx, url, params)
	if err != nil {
		exporter.IncErrorCount()
		return domain.RefundResponse{}, err
	}

	result := gjson.ParseBytes(body)
	response := domain.RefundResponse{
		Result: result.Get("response.result").String(),
		Event:  result.Get("event").String(),
	}
	if response.Result == "" {
		response.Result = result.Get("result").String()
	}
	response.Success = response.Result == "updated" || response.Event == domain.SaveEventToRefund
	return response, nil
}

func (client *Client) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d %s", ErrorUnexpectedStatus, response.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
