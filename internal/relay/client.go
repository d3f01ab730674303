// Package relay submits migration requests to a signing relay, which builds,
// signs and sends the transaction and answers with its signature.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"migrator/internal/logging"
	"migrator/internal/metrics"
	"migrator/internal/migrate"
)

const (
	migratePath     = "/v1/migrate"
	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

// Error is a non-2xx answer from the relay.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("relay: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client implements migrate.Submitter. Submissions are not retried: a
// request that timed out may still have landed.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

var _ migrate.Submitter = (*Client)(nil)

type options struct {
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*options)

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(o *options) { o.token = strings.TrimSpace(token) }
}

// WithTimeout bounds each submission round trip. Zero leaves it unbounded.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the base HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("relay client: URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("relay client: invalid URL %q", baseURL)
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
	}
	if o.token != "" {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}),
			Base:   base,
		}
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}

	return &Client{
		url:  baseURL + migratePath,
		http: hc,
		log:  logging.NewLogger("relay"),
	}, nil
}

type submitResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Submit sends one migration request and returns the transaction signature.
func (c *Client) Submit(ctx context.Context, req migrate.SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	defer resp.Body.Close()
	metrics.RelayRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	c.log.Debug().Str("item", req.ItemMint.String()).Str("signature", out.Signature).Msg("submitted")
	return out.Signature, nil
}

// errorMessage prefers a JSON {"error": "..."} body and falls back to the
// truncated raw text.
func errorMessage(raw []byte) string {
	var body submitResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	s := strings.TrimSpace(string(raw))
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
