package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"migrator/internal/logging"
	"migrator/internal/metrics"
)

const (
	DefaultCommitment = "confirmed"
	maxErrorBody      = 512
)

// Client is a read-only JSON-RPC client for the ledger. It is safe for
// concurrent use.
type Client struct {
	endpoint   string
	http       *http.Client
	budget     *RequestBudget
	retry      RetryConfig
	commitment string
	cache      accountCache
	nextID     atomic.Uint64
	log        zerolog.Logger
}

type options struct {
	verbose    bool
	token      string
	httpClient *http.Client
	budget     *RequestBudget
	retry      *RetryConfig
	commitment string
	timeout    time.Duration
}

type Option func(*options)

// WithVerbose logs every request and response at debug level.
func WithVerbose(enabled bool) Option {
	return func(o *options) { o.verbose = enabled }
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(o *options) { o.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the base HTTP client. Its transport is still
// wrapped for verbose logging and auth.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithRequestBudget(b *RequestBudget) Option {
	return func(o *options) { o.budget = b }
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(o *options) { o.retry = &cfg }
}

func WithCommitment(commitment string) Option {
	return func(o *options) { o.commitment = commitment }
}

// WithTimeout bounds each individual HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// loggingRoundTripper emits one debug line per request and response.
type loggingRoundTripper struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.log.Debug().Str("method", req.Method).Str("url", redactURL(req.URL)).Msg("rpc request")
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug().Dur("elapsed", dur).Err(err).Msg("rpc transport error")
		return resp, err
	}
	t.log.Debug().Int("status", resp.StatusCode).Dur("elapsed", dur).Msg("rpc response")
	return resp, nil
}

// redactURL drops query strings, which RPC providers commonly use for API keys.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("ledger client: endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ledger client: invalid endpoint %q", endpoint)
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	logger := logging.NewLogger("ledger")

	base := o.httpClient
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, log: logger}
	}
	if o.token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}),
			Base:   transport,
		}
	}
	hc := &http.Client{
		Transport:     transport,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}

	c := &Client{
		endpoint:   endpoint,
		http:       hc,
		budget:     o.budget,
		retry:      DefaultRetryConfig(),
		commitment: DefaultCommitment,
		log:        logger,
	}
	if c.budget == nil {
		c.budget = NewRequestBudget()
	}
	if o.retry != nil {
		c.retry = *o.retry
	}
	if o.commitment != "" {
		c.commitment = o.commitment
	}
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Budget() *RequestBudget {
	return c.budget
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

// call performs one JSON-RPC method call with retries and decodes the
// result into out (if non-nil).
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if ctx == nil {
		return fmt.Errorf("%s: nil context", method)
	}
	return c.withRetry(ctx, method, func() error {
		return c.callOnce(ctx, method, params, out)
	})
}

func (c *Client) callOnce(ctx context.Context, method string, params []any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.budget.Acquire(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRPC(method, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	metrics.ObserveRPC(method, resp.StatusCode, time.Since(start))
	c.budget.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Method: method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return &RPCError{Method: method, Code: rr.Error.Code, Message: rr.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}
