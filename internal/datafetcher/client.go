// Package datafetcher reads the lending contract, its price oracle and the exchange through
// NEAR JSON-RPC view calls and assembles the snapshots the engines run on.
package datafetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	rpcTimeout = 20 * time.Second
	rpcBurst   = 4
)

var (
	ErrRPC               = errors.New("rpc error")
	ErrContractExecution = errors.New("contract view call failed")
	ErrMalformedResponse = errors.New("malformed rpc response")
)

// --- Shared JSON-RPC Structures ---

// JSONRPCRequest defines the structure of a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  CallFunctionQuery `json:"params"`
}

// CallFunctionQuery defines the parameters for a "query" of request_type call_function.
type CallFunctionQuery struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountID   string `json:"account_id"`
	MethodName  string `json:"method_name"`
	ArgsBase64  string `json:"args_base64"` // Base64 encoded JSON
}

// Client performs view calls against one NEAR RPC endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient returns a client that issues at most requestsPerSecond calls per second. A
// non-positive rate disables the limit.
func NewClient(endpoint string, requestsPerSecond int) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: rpcTimeout},
		limiter:    rate.NewLimiter(limit, rpcBurst),
		logger:     logger.GetForComponent("near_rpc"),
	}
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ViewCall calls a view method and returns the raw bytes the contract returned, which are
// usually JSON. args may be nil.
func (c *Client) ViewCall(ctx context.Context, contractID, method string, args interface{}) ([]byte, error) {
	start := time.Now()
	result, err := c.viewCall(ctx, contractID, method, args)
	metrics.ObserveRPC(method, err, time.Since(start))
	return result, err
}

func (c *Client) viewCall(ctx context.Context, contractID, method string, args interface{}) ([]byte, error) {
	if args == nil {
		args = struct{}{}
	}
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s args: %w", method, err)
	}

	jsonRPCReq := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      "liquidator",
		Method:  "query",
		Params: CallFunctionQuery{
			RequestType: "call_function",
			Finality:    "final",
			AccountID:   contractID,
			MethodName:  method,
			ArgsBase64:  base64.StdEncoding.EncodeToString(argBytes),
		},
	}
	jsonData, err := json.Marshal(jsonRPCReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("contract", contractID).
		Str("method", method).
		Msg("Executing view call")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Str("method", method).Msg("RPC endpoint returned an HTTP error")
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrRPC, method, resp.StatusCode)
	}

	return c.decodeViewResult(method, body)
}

// decodeViewResult extracts result.result, a JSON array of byte values, from a query response.
func (c *Client) decodeViewResult(method string, body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: body is not JSON", ErrMalformedResponse, method)
	}
	envelope := gjson.ParseBytes(body)

	if rpcErr := envelope.Get("error"); rpcErr.Exists() {
		msg := rpcErr.Get("data").String()
		if msg == "" {
			msg = rpcErr.Get("message").String()
		}
		c.logger.Error().
			Int64("code", rpcErr.Get("code").Int()).
			Str("name", rpcErr.Get("name").String()).
			Str("message", msg).
			Msg("RPC error received")
		return nil, fmt.Errorf("%w: %s: %s", ErrRPC, method, msg)
	}

	// A panicking view method is reported inside a successful envelope.
	if execErr := envelope.Get("result.error"); execErr.Exists() {
		return nil, fmt.Errorf("%w: %s: %s", ErrContractExecution, method, execErr.String())
	}

	raw := envelope.Get("result.result")
	if !raw.IsArray() {
		return nil, fmt.Errorf("%w: %s: result.result is not a byte array", ErrMalformedResponse, method)
	}

	values := raw.Array()
	out := make([]byte, len(values))
	for i, v := range values {
		b := v.Int()
		if v.Type != gjson.Number || b < 0 || b > 255 {
			return nil, fmt.Errorf("%w: %s: invalid byte at %d", ErrMalformedResponse, method, i)
		}
		out[i] = byte(b)
	}
	return out, nil
}
