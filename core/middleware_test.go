package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		header      string
		query       string
		acceptQuery bool
		want        string
	}{
		{"header", http.MethodPost, "JWT abc123", "", false, "abc123"},
		{"header case-insensitive", http.MethodPost, "jwt abc123", "", false, "abc123"},
		{"wrong prefix", http.MethodPost, "Bearer abc123", "", false, ""},
		{"missing token part", http.MethodPost, "JWT", "", false, ""},
		{"no header", http.MethodPost, "", "", false, ""},
		{"query disabled", http.MethodGet, "", "JWT=qtok", false, ""},
		{"query enabled on GET", http.MethodGet, "", "JWT=qtok", true, "qtok"},
		{"query enabled on POST ignored", http.MethodPost, "", "JWT=qtok", true, ""},
		{"header wins over query", http.MethodGet, "JWT htok", "JWT=qtok", true, "htok"},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "/me/?"+tc.query, nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		rc := NewRequestContext(r)
		if got := rc.BearerToken(tc.acceptQuery); got != tc.want {
			t.Fatalf("%s: BearerToken = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestJWTBackendInvalidTokenIsNoIdentity(t *testing.T) {
	repo := newMemUserRepository()
	backend := NewJWTBackend(newTestCodec(repo), false)

	r := httptest.NewRequest(http.MethodGet, "/me/", nil)
	r.Header.Set("Authorization", "JWT garbage")
	u, err := backend.Authenticate(context.Background(), NewRequestContext(r))
	if err != nil {
		t.Fatalf("invalid token must not be a hard failure: %v", err)
	}
	if u != nil {
		t.Fatalf("user = %+v, want nil", u)
	}
}

func TestPasswordBackendSkipsWithoutCredentials(t *testing.T) {
	repo := newMemUserRepository()
	mustAddUser(t, repo, "alice", "", "Secr3t!23")
	backend := NewPasswordBackend(NewRepositoryAuthService(repo))

	u, err := backend.Authenticate(context.Background(), RequestContext{Method: http.MethodGet})
	if err != nil || u != nil {
		t.Fatalf("no-credential request: user=%+v err=%v, want nil/nil", u, err)
	}

	u, err = backend.Authenticate(context.Background(), RequestContext{Username: "alice", Password: "wrong"})
	if err != nil || u != nil {
		t.Fatalf("bad credentials: user=%+v err=%v, want nil/nil", u, err)
	}

	u, err = backend.Authenticate(context.Background(), RequestContext{Username: "alice", Password: "Secr3t!23"})
	if err != nil || u == nil || u.Username != "alice" {
		t.Fatalf("good credentials: user=%+v err=%v", u, err)
	}
}

// countingBackend records how often the chain consulted it.
type countingBackend struct {
	calls int
	user  *User
}

func (b *countingBackend) Authenticate(ctx context.Context, rc RequestContext) (*User, error) {
	b.calls++
	return b.user, nil
}

func TestChainFirstIdentityWins(t *testing.T) {
	first := &countingBackend{user: &User{ID: 1, Username: "first"}}
	second := &countingBackend{user: &User{ID: 2, Username: "second"}}
	chain := NewChain(first, second)

	u, err := chain.Authenticate(context.Background(), RequestContext{})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u == nil || u.Username != "first" {
		t.Fatalf("user = %+v, want first", u)
	}
	if second.calls != 0 {
		t.Fatalf("second backend consulted %d times", second.calls)
	}
}

func TestIdentityResolvedAtMostOncePerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	backend := &countingBackend{user: &User{ID: 7, Username: "alice", IsActive: true, CreatedAt: time.Now()}}
	chain := NewChain(backend)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/me/", nil)
	AuthenticationMiddleware(chain)(c)

	for i := 0; i < 3; i++ {
		if u := CurrentUser(c); u == nil || u.Username != "alice" {
			t.Fatalf("read %d: user = %+v", i, u)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("chain ran %d times, want 1", backend.calls)
	}
}

func TestOriginMiddlewareRejectsUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := Config{AllowedOrigins: []string{"https://app.example.com"}}
	r := gin.New()
	r.Use(OriginMiddleware(cfg))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Allowed origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("allowed origin: status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin header = %q", got)
	}

	// Unknown origin.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unknown origin: status = %d, want 403", w.Code)
	}

	// Same-origin (no Origin header).
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("same-origin: status = %d", w.Code)
	}
}
