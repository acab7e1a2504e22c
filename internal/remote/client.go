// Package remote is the backend that talks to the upstream budget,
// transaction and user services over HTTP. Every request carries the
// session's access token as a bearer token.
package remote

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

	"golang.org/x/oauth2"

	"finboard/internal/auth"
	"finboard/internal/core"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4 << 10
)

type service int

const (
	budgetService service = iota
	transactionService
	userService
)

func (s service) String() string {
	switch s {
	case budgetService:
		return "budget"
	case transactionService:
		return "transaction"
	default:
		return "user"
	}
}

// Config points the client at the three upstream services.
type Config struct {
	BudgetURL      string
	TransactionURL string
	UserURL        string
	Timeout        time.Duration
	// Transport is the base round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client implements ports.Backend against the upstream HTTP services.
type Client struct {
	bases     map[service]*url.URL
	timeout   time.Duration
	transport http.RoundTripper
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	raw := map[service]string{
		budgetService:      cfg.BudgetURL,
		transactionService: cfg.TransactionURL,
		userService:        cfg.UserURL,
	}
	bases := make(map[service]*url.URL, len(raw))
	for svc, s := range raw {
		if s == "" {
			return nil, fmt.Errorf("%s service URL is required", svc)
		}
		u, err := url.Parse(strings.TrimRight(s, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s service URL %q", svc, s)
		}
		bases[svc] = u
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{bases: bases, timeout: timeout, transport: transport}, nil
}

// httpClient returns a client that signs requests with the session token.
func (c *Client) httpClient(s auth.Session) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: src, Base: c.transport},
	}
}

// do sends one request. A 204 leaves out untouched and reports found=false.
func (c *Client) do(ctx context.Context, s auth.Session, svc service, method, path string, query url.Values, body, out any) (found bool, err error) {
	if s.AccessToken == "" {
		return false, auth.ErrUnauthorized
	}

	u := *c.bases[svc]
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode %s request: %w", svc, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", svc, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient(s).Do(req)
	if err != nil {
		return false, fmt.Errorf("%s service %s %s: %w", svc, method, path, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Upstream call",
		"service", svc.String(),
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, statusError(svc, method, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode %s response: %w", svc, err)
		}
	}
	return true, nil
}

// statusError maps an upstream failure to the package-level sentinels.
func statusError(svc service, method, path string, resp *http.Response) error {
	msg := upstreamMessage(resp)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s service: %w", svc, auth.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, core.ErrNotFound)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w", msg, core.ErrConflict)
	default:
		return fmt.Errorf("%s service %s %s: unexpected status %d: %s", svc, method, path, resp.StatusCode, msg)
	}
}

func upstreamMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return resp.Status
}

// notFoundIfEmpty turns a 204 response into core.ErrNotFound.
func notFoundIfEmpty(found bool, err error, what string) error {
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
