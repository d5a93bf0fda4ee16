package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// DefaultBaseURL is the PDS used for login and reads.
const DefaultBaseURL = "https://bsky.social"

// Client reads posts through XRPC. It is safe for concurrent use; every
// fetch creates its own session.
type Client struct {
	baseURL    string
	identifier string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

var _ ports.PostFetcher = (*Client)(nil)

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	rps        float64
}

// New creates a Client for the PDS at baseURL that logs in with identifier
// (handle or email) and an app password. Credentials are checked at fetch
// time so that a client can be built before they are known.
func New(baseURL, identifier, password string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("bluesky: invalid base URL %q: %w", baseURL, err)
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{}
	if cfg.httpClient != nil {
		copied := *cfg.httpClient
		httpClient = &copied
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	var limiter *rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), 1)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		identifier: identifier,
		password:   password,
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit paces XRPC calls to rps requests per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(cfg *clientConfig) error {
		if rps < 0 {
			return fmt.Errorf("bluesky: rate limit must not be negative, got %v", rps)
		}
		cfg.rps = rps
		return nil
	}
}

// FetchThread logs in, resolves the post URL to an AT URI and reads the post.
// Not-found and blocked thread views are returned as thread kinds. XRPC
// errors, NotFound included, are returned as *APIError.
func (c *Client) FetchThread(ctx context.Context, postURL string) (domain.Thread, error) {
	ref, err := ParsePostURL(postURL)
	if err != nil {
		return domain.Thread{}, err
	}
	if c.identifier == "" || c.password == "" {
		return domain.Thread{}, ErrMissingCredentials
	}

	sess, err := c.createSession(ctx)
	if err != nil {
		return domain.Thread{}, err
	}

	did := ref.Actor
	if !ref.IsDID() {
		did, err = c.resolveHandle(ctx, sess.AccessJwt, ref.Actor)
		if err != nil {
			return domain.Thread{}, err
		}
	}

	uri := PostATURI(did, ref.RKey)
	thread, err := c.getPostThread(ctx, sess.AccessJwt, uri)
	if err != nil {
		return domain.Thread{}, err
	}

	c.logger.DebugContext(ctx, "fetched post", "uri", uri, "kind", thread.Kind.String())
	return thread, nil
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

func (c *Client) createSession(ctx context.Context) (*session, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": c.identifier,
		"password":   c.password,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: encode request: %w", err)
	}

	var sess session
	if err := c.doJSON(ctx, http.MethodPost, "com.atproto.server.createSession", nil, "", bytes.NewReader(body), &sess); err != nil {
		if HasStatusCode(err, http.StatusUnauthorized) {
			return nil, fmt.Errorf("invalid identifier or password: %w", err)
		}
		return nil, err
	}
	if sess.AccessJwt == "" {
		return nil, fmt.Errorf("create session: %w: no access token", ports.ErrInvalidResponse)
	}
	return &sess, nil
}

func (c *Client) resolveHandle(ctx context.Context, token, handle string) (string, error) {
	var out struct {
		DID string `json:"did"`
	}
	q := url.Values{"handle": {handle}}
	if err := c.doJSON(ctx, http.MethodGet, "com.atproto.identity.resolveHandle", q, token, nil, &out); err != nil {
		return "", err
	}
	if out.DID == "" {
		return "", fmt.Errorf("resolve handle %s: %w: empty did", handle, ports.ErrInvalidResponse)
	}
	return out.DID, nil
}

func (c *Client) getPostThread(ctx context.Context, token, uri string) (domain.Thread, error) {
	var out getPostThreadResponse
	q := url.Values{"uri": {uri}, "depth": {"0"}, "parentHeight": {"0"}}
	// A NotFound XRPC error is a failed fetch; only a notFoundPost view is a
	// not-found thread.
	if err := c.doJSON(ctx, http.MethodGet, "app.bsky.feed.getPostThread", q, token, nil, &out); err != nil {
		return domain.Thread{}, err
	}
	return decodeThread(out.Thread, uri)
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doJSON calls the XRPC method nsid and decodes the JSON response into dst.
// Non-2xx responses are returned as *APIError.
func (c *Client) doJSON(ctx context.Context, method, nsid string, query url.Values, token string, body io.Reader, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", nsid, err)
		}
	}

	u := c.baseURL + "/xrpc/" + nsid
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", nsid, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "XRPC request", "method", method, "nsid", nsid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", nsid, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "XRPC response", "nsid", nsid, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Operation: nsid, StatusCode: resp.StatusCode}
		var xe xrpcError
		if json.Unmarshal(respBody, &xe) == nil && (xe.Error != "" || xe.Message != "") {
			apiErr.Code = xe.Error
			apiErr.Message = xe.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
			if apiErr.Message == "" {
				apiErr.Message = resp.Status
			}
		}
		return apiErr
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", nsid, err)
		}
	}
	return nil
}
