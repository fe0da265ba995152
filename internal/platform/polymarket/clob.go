package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/polyarb/arbengine/internal/crypto"
	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
)

// clobRatePerSec throttles authenticated CLOB requests to 60% of the
// documented general limit (9000/10s), matching
// AlejandroRuiz99-polybot's client.go.
const clobRatePerSec = 540

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It handles order placement and cancellation using
// pre-provisioned HMAC credentials; it performs no wallet-level signing.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	hmacAuth   *crypto.HMACAuth
	limiter    *rate.Limiter
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com". hmac
// carries the API key/secret/passphrase issued out-of-band by Polymarket.
func NewClobClient(baseURL string, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		hmacAuth: hmac,
		limiter:  rate.NewLimiter(clobRatePerSec, 50),
	}
}

// PlaceOrder submits a limit order to the CLOB API for one token.
func (c *ClobClient) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	body := map[string]any{
		"tokenID": req.TokenID,
		"price":   req.LimitPrice,
		"size":    req.SizeUSD,
		"side":    clobSide(req.Side),
		"type":    "GTC",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return venue.OrderAck{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return venue.OrderAck{}, fmt.Errorf("polymarket/clob: decode order result: %w: %w", domain.ErrParseError, err)
	}
	if !apiResult.Success {
		return venue.OrderAck{}, fmt.Errorf("polymarket/clob: %w: %s", domain.ErrRejectedByVenue, apiResult.ErrorMsg)
	}

	status := domain.LegStatusFilled
	if apiResult.Status != "matched" {
		status = domain.LegStatusPartial
	}

	return venue.OrderAck{OrderID: apiResult.OrderID, Status: status}, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderID": orderID}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w: %w", domain.ErrParseError, err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: %w: %s", domain.ErrRejectedByVenue, result.ErrorMsg)
	}

	return nil
}

// CancelAll cancels all open orders for the authenticated account.
func (c *ClobClient) CancelAll(ctx context.Context) error {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel all: %w", err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel-all response: %w: %w", domain.ErrParseError, err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: %w: %s", domain.ErrRejectedByVenue, result.ErrorMsg)
	}

	return nil
}

func clobSide(s domain.Side) string {
	if s == domain.SideSell {
		return "SELL"
	}
	return "BUY"
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth == nil {
		return nil, fmt.Errorf("polymarket/clob: %w: no credentials configured", domain.ErrSigningError)
	}
	headers := c.hmacAuth.L2Headers(method, path, bodyStr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain sentinel errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrRejectedByVenue, statusCode, bodyStr)
	}
}
