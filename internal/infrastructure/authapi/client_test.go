package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/024globalconnect/portal/internal/core/domain"
	"github.com/024globalconnect/portal/internal/core/ports"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// backend routes each path to its handler and records the last request body.
type backend struct {
	routes map[string]http.HandlerFunc

	mu   sync.Mutex
	body map[string]any
	auth string
}

func (b *backend) last() (map[string]any, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body, b.auth
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.body, b.auth = body, r.Header.Get("Authorization")
		b.mu.Unlock()
		h, ok := b.routes[r.URL.Path]
		if !ok || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_VerifyCredentials(t *testing.T) {
	b := &backend{routes: map[string]http.HandlerFunc{
		"/api/login/": respond(http.StatusOK, `{
			"access": "a1", "refresh": "r1",
			"user": {"id": 12, "username": "amina", "role": "vendor", "promotion_methods": "blog, radio", "certificate_Number": null}
		}`),
	}}
	client := New(Config{BaseURL: b.server(t).URL + "/api"})

	sess, err := client.VerifyCredentials(context.Background(), "amina", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if body, _ := b.last(); body["username"] != "amina" || body["password"] != "pw" {
		t.Fatalf("unexpected request body: %v", body)
	}
	if sess.AccessToken != "a1" || sess.RefreshToken != "r1" {
		t.Fatalf("unexpected tokens: %+v", sess)
	}
	u := sess.User
	if u.ID != "12" || u.Role != domain.RoleVendor || len(u.PromotionMethods) != 2 || u.PromotionMethods[1] != "radio" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, ok := u.Extra["certificate_Number"]; !ok {
		t.Fatalf("expected unknown fields kept in Extra")
	}
}

func TestClient_VerifyCredentials_Rejected(t *testing.T) {
	b := &backend{routes: map[string]http.HandlerFunc{
		"/api/login/": respond(http.StatusBadRequest, `{"detail": "Account is inactive"}`),
	}}
	client := New(Config{BaseURL: b.server(t).URL + "/api/"})

	_, err := client.VerifyCredentials(context.Background(), "amina", "pw")

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidCredentials) || apiErr.Detail() != "Account is inactive" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Transport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := New(Config{BaseURL: url})

	_, err := client.VerifyCredentials(context.Background(), "amina", "pw")
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	b := &backend{routes: map[string]http.HandlerFunc{
		"/register/": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	}}
	srv := b.server(t)
	defer close(release)
	client := New(Config{BaseURL: srv.URL, Timeout: time.Hour})

	start := time.Now()
	_, err := client.Register(context.Background(), domain.RegistrationRequest{}, ports.RegisterOptions{Timeout: 50 * time.Millisecond})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport on timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("register timeout not applied")
	}
}

func TestClient_Register(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		success bool
		fields  bool
		apiErr  bool
	}{
		{"created", respond(http.StatusCreated, `{"message":"Account created successfully."}`), true, false, false},
		{"empty body", respond(http.StatusNoContent, ``), true, false, false},
		{"success false", respond(http.StatusOK, `{"success":false,"errors":{"email":["taken"]}}`), false, true, false},
		{"field errors", respond(http.StatusBadRequest, `{"email":["user with this email already exists."]}`), false, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &backend{routes: map[string]http.HandlerFunc{"/register/": tc.handler}}
			client := New(Config{BaseURL: b.server(t).URL})

			req := domain.RegistrationRequest{Username: "amina", PromotionMethods: []string{}, Role: domain.RoleAffiliate}
			resp, err := client.Register(context.Background(), req, ports.RegisterOptions{})

			body, _ := b.last()
			if body["role"] != "user" {
				t.Fatalf("expected role in payload, got %v", body)
			}
			if list, ok := body["promotion_methods"].([]any); !ok || len(list) != 0 {
				t.Fatalf("expected empty promotion_methods list, got %v", body["promotion_methods"])
			}

			if tc.apiErr {
				var apiErr *domain.APIError
				if !errors.As(err, &apiErr) || !errors.Is(err, domain.ErrRegistrationRejected) {
					t.Fatalf("expected APIError, got %v", err)
				}
				if _, ok := apiErr.Payload["email"]; !ok {
					t.Fatalf("expected field errors in payload, got %v", apiErr.Payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if resp.Success != tc.success {
				t.Fatalf("expected success=%v, got %+v", tc.success, resp)
			}
			if tc.fields && resp.Errors["email"] == nil {
				t.Fatalf("expected field errors, got %+v", resp.Errors)
			}
		})
	}
}

func TestClient_RefreshToken(t *testing.T) {
	b := &backend{routes: map[string]http.HandlerFunc{
		"/token/refresh/": respond(http.StatusOK, `{"access":"a2","refresh":"r2"}`),
	}}
	client := New(Config{BaseURL: b.server(t).URL})

	bundle, err := client.RefreshToken(context.Background(), "r1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if body, _ := b.last(); body["refresh"] != "r1" || bundle.Access != "a2" || bundle.Refresh != "r2" {
		t.Fatalf("unexpected exchange: %v %+v", body, bundle)
	}
}

func TestClient_RefreshToken_Rejected(t *testing.T) {
	b := &backend{routes: map[string]http.HandlerFunc{
		"/token/refresh/": respond(http.StatusUnauthorized, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`),
	}}
	client := New(Config{BaseURL: b.server(t).URL})

	_, err := client.RefreshToken(context.Background(), "r1")
	if !errors.Is(err, domain.ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
}

func TestClient_InvalidateSession(t *testing.T) {
	b := &backend{routes: map[string]http.HandlerFunc{
		"/logout/": respond(http.StatusOK, `{"detail":"Successfully logged out."}`),
	}}
	client := New(Config{BaseURL: b.server(t).URL})

	if err := client.InvalidateSession(context.Background(), "a1", "r1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if body, auth := b.last(); auth != "Bearer a1" || body["refresh"] != "r1" {
		t.Fatalf("unexpected request: %q %v", auth, body)
	}
}

func TestClient_CheckValidity(t *testing.T) {
	client := New(Config{Leeway: 10 * time.Second})
	now := time.Now()

	cases := map[string]struct {
		token string
		want  bool
	}{
		"empty":          {"", false},
		"garbage":        {"not.a.jwt", false},
		"no exp":         {signed(t, jwt.MapClaims{"user_id": 1}), false},
		"expired":        {signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), false},
		"within leeway":  {signed(t, jwt.MapClaims{"exp": now.Add(5 * time.Second).Unix()}), false},
		"valid":          {signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), true},
		"foreign signer": {signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix(), "iss": "x"}), true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := client.CheckValidity(tc.token); got != tc.want {
				t.Fatalf("CheckValidity = %v, want %v", got, tc.want)
			}
		})
	}
}
