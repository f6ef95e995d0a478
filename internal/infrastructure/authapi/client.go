// Package authapi is the HTTP client of the remote auth backend. It speaks
// the simplejwt token contract: login/, token/refresh/, register/ and
// logout/ under a common base URL.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const (
	DefaultBaseURL = "https://gonzaga-u98x.onrender.com/api"
	DefaultTimeout = 10 * time.Second

	maxResponseBody = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds every call that does not carry its own timeout.
	Timeout time.Duration
	// Leeway treats an access token as expired this long before its exp.
	Leeway     time.Duration
	HTTPClient *http.Client
}

// Client implements ports.AuthClient. It never retries.
type Client struct {
	base    string
	timeout time.Duration
	leeway  time.Duration
	http    *http.Client
	parser  *jwt.Parser
}

var _ ports.AuthClient = (*Client)(nil)

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		base:    base,
		timeout: cfg.Timeout,
		leeway:  cfg.Leeway,
		http:    cfg.HTTPClient,
		parser:  jwt.NewParser(),
	}
}

type loginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

func (c *Client) VerifyCredentials(ctx context.Context, username, password string) (*domain.Session, error) {
	body := map[string]string{"username": username, "password": password}

	var resp loginResponse
	if err := c.post(ctx, "login/", body, "", 0, domain.ErrInvalidCredentials, &resp); err != nil {
		return nil, err
	}
	return &domain.Session{AccessToken: resp.Access, RefreshToken: resp.Refresh, User: resp.User}, nil
}

// Register treats any 2xx answer as success unless the body says
// "success": false. A 4xx body is returned as the APIError payload.
func (c *Client) Register(ctx context.Context, req domain.RegistrationRequest, opts ports.RegisterOptions) (*ports.RegisterResponse, error) {
	var body map[string]any
	if err := c.post(ctx, "register/", req, "", opts.Timeout, domain.ErrRegistrationRejected, &body); err != nil {
		return nil, err
	}

	out := &ports.RegisterResponse{Success: true}
	if ok, isBool := body["success"].(bool); isBool && !ok {
		out.Success = false
		if errs, isMap := body["errors"].(map[string]any); isMap {
			out.Errors = errs
		} else {
			out.Errors = body
		}
	}
	if msg, ok := body["message"].(string); ok {
		out.Message = msg
	}
	return out, nil
}

func (c *Client) InvalidateSession(ctx context.Context, access, refresh string) error {
	if refresh == "" {
		return nil
	}
	body := map[string]string{"refresh": refresh}
	return c.post(ctx, "logout/", body, access, 0, domain.ErrRefreshRejected, nil)
}

func (c *Client) RefreshToken(ctx context.Context, refresh string) (*domain.RefreshBundle, error) {
	body := map[string]string{"refresh": refresh}

	var bundle domain.RefreshBundle
	if err := c.post(ctx, "token/refresh/", body, "", 0, domain.ErrRefreshRejected, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// CheckValidity inspects the token's exp claim without verifying its
// signature; only the backend can do that. Tokens without exp are rejected.
func (c *Client) CheckValidity(accessToken string) bool {
	if accessToken == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := c.parser.ParseUnverified(accessToken, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(c.leeway).Before(exp.Time)
}

// post sends body as JSON. Transport failures wrap domain.ErrTransport;
// non-2xx answers become a *domain.APIError with the given kind.
func (c *Client) post(ctx context.Context, path string, body any, bearer string, timeout time.Duration, kind error, out any) error {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read body: %w: %w", path, domain.ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &domain.APIError{Status: resp.StatusCode, Kind: kind}
		var decoded map[string]any
		if json.Unmarshal(raw, &decoded) == nil {
			apiErr.Payload = decoded
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %w", path, domain.ErrMalformedSession, err)
	}
	return nil
}
