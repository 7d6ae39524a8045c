package fordefi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client dispatches signed transfer requests to the custody endpoint.
// It is safe for concurrent use; the bearer token and signer key are
// read-only after construction.
type Client struct {
	baseURL string
	token   string
	signer  *Signer
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom
// transports).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithRateLimit paces outbound requests. Zero/negative disables pacing.
func WithRateLimit(perSec float64, burst int) ClientOption {
	return func(c *Client) {
		if perSec > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(baseURL, token string, signer *Signer, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		signer:  signer,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TxResponse is the subset of the custody response the engine cares about.
type TxResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// CreateTransaction signs and POSTs one built transfer.
//
// Non-2xx responses come back as *APIError with the decoded detail attached;
// transport-level failures are returned wrapped, with no response to attach.
// The caller gets no delivery guarantee past a 2xx here (per the custody
// contract: acceptance, not on-chain confirmation).
func (c *Client) CreateTransaction(ctx context.Context, req *TransferRequest) (*TxResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ts := c.now().Unix()
	sig, err := c.signer.Sign(req.Path, ts, req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("x-signature", base64.StdEncoding.EncodeToString(sig))
	httpReq.Header.Set("x-timestamp", strconv.FormatInt(ts, 10))
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fordefi request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fordefi response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: errorDetail(body)}
		c.log.Warn().Int("status", resp.StatusCode).Dur("took", time.Since(start)).
			Str("detail", apiErr.Detail).Msg("transaction rejected")
		return nil, apiErr
	}

	var tx TxResponse
	if err := json.Unmarshal(body, &tx); err != nil {
		// A 2xx with an unparseable body still means the transfer was
		// accepted; report it without an id rather than failing the cycle.
		c.log.Warn().Err(err).Msg("could not decode transaction response")
		return &TxResponse{}, nil
	}
	c.log.Debug().Str("tx_id", tx.ID).Str("state", tx.State).
		Dur("took", time.Since(start)).Msg("transaction accepted")
	return &tx, nil
}

// errorDetail pulls the "detail" field out of a JSON error body, falling
// back to the raw text.
func errorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return trimmed
}
