// Package proxy forwards the browser's API calls to the auth backend with
// the session's bearer token. Tokens never leave the server.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/024globalconnect/portal/internal/api/metrics"
	"github.com/024globalconnect/portal/internal/api/middleware"
	"github.com/024globalconnect/portal/internal/core/ports"
)

const (
	DefaultPrefix = "/api"

	// DefaultMaxReplayBody is the largest request body buffered so the
	// request can be replayed after a refresh.
	DefaultMaxReplayBody = 1 << 20

	profileUpdatePath = "/update/"
)

// Options configures the proxy.
type Options struct {
	// Target is the backend base URL, e.g. https://host/api.
	Target *url.URL
	// Prefix is stripped from the incoming path before it is joined to Target.
	Prefix        string
	MaxReplayBody int64
	Transport     http.RoundTripper
	Log           zerolog.Logger
}

type ctxKey struct{}

// Proxy is an httputil.ReverseProxy whose transport authenticates every
// request with the calling session and refreshes once on a 401.
type Proxy struct {
	rp  *httputil.ReverseProxy
	log zerolog.Logger
}

func New(opts Options) *Proxy {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxReplayBody <= 0 {
		opts.MaxReplayBody = DefaultMaxReplayBody
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	target := opts.Target
	prefix := strings.TrimSuffix(opts.Prefix, "/")

	p := &Proxy{log: opts.Log}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
			// Browser credentials are never forwarded; the session's are.
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		Transport: &refreshingTransport{
			base:    opts.Transport,
			maxBody: opts.MaxReplayBody,
			log:     opts.Log,
		},
		ModifyResponse: p.syncProfile,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			opts.Log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy request failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
		},
	}
	return p
}

// Handler serves the proxied route. It must run after middleware.Guard.
func (p *Proxy) Handler(c echo.Context) error {
	m := middleware.SessionFrom(c)
	if m == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	req := c.Request()
	ctx := context.WithValue(req.Context(), ctxKey{}, m)
	p.rp.ServeHTTP(c.Response(), req.WithContext(ctx))
	return nil
}

func sessionOf(ctx context.Context) ports.SessionManager {
	m, _ := ctx.Value(ctxKey{}).(ports.SessionManager)
	return m
}

// syncProfile merges the backend's answer to a successful profile update
// into the cached user.
func (p *Proxy) syncProfile(resp *http.Response) error {
	req := resp.Request
	if req == nil {
		return nil
	}
	if req.Method != http.MethodPut && req.Method != http.MethodPatch {
		return nil
	}
	if !strings.HasSuffix(req.URL.Path, profileUpdatePath) || resp.StatusCode/100 != 2 {
		return nil
	}
	m := sessionOf(req.Context())
	if m == nil {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxReplayBody+1))
	if err != nil {
		return err
	}
	if int64(len(raw)) > DefaultMaxReplayBody {
		// Too large to inspect: hand the browser the whole body untouched.
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(raw), resp.Body), resp.Body}
		p.log.Warn().Str("path", req.URL.Path).Msg("profile update too large to cache")
		return nil
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))
	resp.Header.Set("Content-Length", strconv.Itoa(len(raw)))

	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		return nil
	}
	patch := body
	if u, ok := body["user"].(map[string]any); ok {
		patch = u
	}
	if err := m.UpdateUser(req.Context(), patch); err != nil {
		p.log.Warn().Err(err).Msg("profile update not cached")
	}
	return nil
}

// readCloser reads from a prefix of already consumed bytes followed by the
// rest of the original body, and closes the original.
type readCloser struct {
	io.Reader
	io.Closer
}

// refreshingTransport injects the session's access token. On a 401 it asks
// the session to refresh and replays the request once when its body was
// buffered.
type refreshingTransport struct {
	base    http.RoundTripper
	maxBody int64
	log     zerolog.Logger
}

func (t *refreshingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m := sessionOf(req.Context())
	if m == nil {
		return t.base.RoundTrip(req)
	}

	body, replayable, err := t.buffer(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(req, m.AccessToken(), body)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	res, rerr := m.RefreshAuth(req.Context())
	if rerr != nil {
		metrics.RefreshTotal.WithLabelValues("proxy", "rejected").Inc()
		t.log.Info().Err(rerr).Str("path", req.URL.Path).Msg("proxy refresh failed")
		return resp, nil
	}
	metrics.RefreshTotal.WithLabelValues("proxy", "success").Inc()

	if !replayable {
		metrics.ProxyReplaysTotal.WithLabelValues("not_replayable").Inc()
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	metrics.ProxyReplaysTotal.WithLabelValues("replayed").Inc()
	return t.send(req, res.AccessToken, body)
}

// buffer reads the request body when it fits within maxBody. A body that is
// too large, or of unknown length, streams through and is not replayable.
func (t *refreshingTransport) buffer(req *http.Request) ([]byte, bool, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, true, nil
	}
	if req.ContentLength < 0 || req.ContentLength > t.maxBody {
		return nil, false, nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (t *refreshingTransport) send(req *http.Request, token string, body []byte) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(out)
}
