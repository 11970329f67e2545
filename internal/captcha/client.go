package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	GlobalDomain = "api.privatecaptcha.com"
	EUDomain     = "api.eu.privatecaptcha.com"

	// FormField is the form field carrying the widget's solution.
	FormField = "private-captcha-solution"

	APIKeyHeader = "X-Api-Key"

	DefaultTimeout = 10 * time.Second
	MaxRedirects   = 5

	// puzzleOrigin only has to be non-empty; the API rejects puzzle requests without an Origin.
	puzzleOrigin = "not.empty"

	maxResponseBytes = 1 << 20
)

var (
	ErrEmptyAPIKey = errors.New("captcha: api key is empty")
	ErrAPIKey      = errors.New("captcha: api key rejected")
	ErrEmptyPuzzle = errors.New("captcha: empty puzzle")
)

// Client talks to the Private Captcha API for one set of credentials.
// It is immutable; a configuration change builds a new Client.
type Client struct {
	apiKey string
	domain string
	httpC  *http.Client
}

// Option configures a Client when creating it via New.
type Option func(*Client)

// WithTransport replaces the HTTP transport while keeping the timeout and redirect policy.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpC.Transport = rt
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpC.Timeout = d
	}
}

// New creates a client for the given credentials. The base domain is resolved once with
// ResolveDomain.
func New(apiKey, customDomain string, euIsolation bool, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	c := &Client{
		apiKey: apiKey,
		domain: ResolveDomain(customDomain, euIsolation),
		httpC: &http.Client{
			Timeout:       DefaultTimeout,
			CheckRedirect: limitRedirects,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveDomain picks the API host: a custom domain wins over EU isolation, which wins over
// the global domain. Custom domains are stored as root domains, so the API subdomain is
// prepended unless it is already there.
func ResolveDomain(customDomain string, euIsolation bool) string {
	d := strings.TrimSpace(customDomain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	switch {
	case d != "":
		if strings.HasPrefix(d, "api.") {
			return d
		}
		return "api." + d
	case euIsolation:
		return EUDomain
	default:
		return GlobalDomain
	}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", MaxRedirects)
	}
	return nil
}

// Domain returns the resolved API host.
func (c *Client) Domain() string {
	return c.domain
}

// FetchPuzzle requests a puzzle for sitekey and returns the raw body.
func (c *Client) FetchPuzzle(ctx context.Context, sitekey string) (string, error) {
	u := fmt.Sprintf("https://%s/puzzle?sitekey=%s", c.domain, url.QueryEscape(sitekey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create puzzle request: %w", err)
	}
	req.Header.Set("Origin", puzzleOrigin)

	resp, err := c.httpC.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch puzzle: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch puzzle: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read puzzle: %w", err)
	}
	if len(body) == 0 {
		return "", ErrEmptyPuzzle
	}
	return string(body), nil
}

// Verify submits a solution payload and decodes the verdict.
func (c *Client) Verify(ctx context.Context, solution string) (*VerifyOutput, error) {
	u := fmt.Sprintf("https://%s/verify", c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(solution))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpC.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAPIKey
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to verify: HTTP %d", resp.StatusCode)
	}

	var out VerifyOutput
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return &out, nil
}

// VerifySolution verifies a solution submitted by a form. An empty solution never passes.
func (c *Client) VerifySolution(ctx context.Context, solution string) (bool, error) {
	if solution == "" {
		return false, nil
	}
	out, err := c.Verify(ctx, solution)
	if err != nil {
		return false, err
	}
	return out.Success, nil
}
