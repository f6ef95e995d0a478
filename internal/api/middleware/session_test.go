package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/core/ports"
)

type stubRegistry struct {
	acquired []string
	session  ports.SessionManager
}

func (r *stubRegistry) Acquire(_ context.Context, sid string) ports.SessionManager {
	r.acquired = append(r.acquired, sid)
	return r.session
}

func runSession(t *testing.T, reg *stubRegistry, cookie *http.Cookie) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var sid string
	mw := Session(reg, SessionOptions{TTL: time.Hour})
	handler := mw(func(c echo.Context) error {
		sid = SessionID(c)
		if SessionFrom(c) != reg.session {
			t.Fatalf("session manager not set on context")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, sid
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == DefaultSessionCookie {
			return ck
		}
	}
	return nil
}

func TestSession_IssuesCookie(t *testing.T) {
	reg := &stubRegistry{session: newStubSession(nil, false)}

	rec, sid := runSession(t, reg, nil)

	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("expected a uuid session id, got %q", sid)
	}
	ck := sessionCookie(rec)
	if ck == nil || ck.Value != sid || !ck.HttpOnly || ck.MaxAge != 3600 {
		t.Fatalf("unexpected cookie: %+v", ck)
	}
	if len(reg.acquired) != 1 || reg.acquired[0] != sid {
		t.Fatalf("expected the registry to be asked for %s, got %v", sid, reg.acquired)
	}
}

func TestSession_ReusesValidCookie(t *testing.T) {
	reg := &stubRegistry{session: newStubSession(nil, false)}
	existing := uuid.NewString()

	rec, sid := runSession(t, reg, &http.Cookie{Name: DefaultSessionCookie, Value: existing})

	if sid != existing {
		t.Fatalf("expected %s, got %s", existing, sid)
	}
	if ck := sessionCookie(rec); ck == nil || ck.Value != existing {
		t.Fatalf("expected the cookie to be re-issued, got %+v", ck)
	}
}

func TestSession_ReplacesMalformedCookie(t *testing.T) {
	reg := &stubRegistry{session: newStubSession(nil, false)}

	_, sid := runSession(t, reg, &http.Cookie{Name: DefaultSessionCookie, Value: "../../etc"})

	if sid == "../../etc" {
		t.Fatalf("malformed session id accepted")
	}
	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("expected a fresh uuid, got %q", sid)
	}
}
