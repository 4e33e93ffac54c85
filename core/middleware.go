package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequestContext carries the request data the authentication backends need,
// by value. Username/Password are only populated by the login handler.
type RequestContext struct {
	Method        string
	Authorization string
	Query         url.Values
	Username      string
	Password      string
}

// NewRequestContext extracts the relevant parts of an HTTP request.
func NewRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		Method:        r.Method,
		Authorization: r.Header.Get("Authorization"),
		Query:         r.URL.Query(),
	}
}

// BearerToken returns the token from "Authorization: JWT <token>". When the
// header is absent or malformed, GET requests may fall back to the ?JWT=
// query parameter if that is explicitly enabled.
func (rc RequestContext) BearerToken(acceptQueryParam bool) string {
	fields := strings.Fields(rc.Authorization)
	if len(fields) == 2 && strings.EqualFold(fields[0], jwtAuthHeaderPrefix) {
		return fields[1]
	}
	if rc.Method == http.MethodGet && acceptQueryParam {
		return rc.Query.Get(jwtQueryParam)
	}
	return ""
}

// Backend resolves a request to a user identity, or to nil when the request
// carries nothing this strategy understands.
type Backend interface {
	Authenticate(ctx context.Context, rc RequestContext) (*User, error)
}

// PasswordBackend authenticates explicit credentials via the auth service.
type PasswordBackend struct {
	auth AuthService
}

func NewPasswordBackend(auth AuthService) *PasswordBackend {
	return &PasswordBackend{auth: auth}
}

func (b *PasswordBackend) Authenticate(ctx context.Context, rc RequestContext) (*User, error) {
	if rc.Username == "" || rc.Password == "" {
		return nil, nil
	}
	u, err := b.auth.Authenticate(ctx, rc.Username, rc.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// JWTBackend authenticates a bearer access token. An invalid token means "no
// identity", never a hard failure.
type JWTBackend struct {
	codec       *TokenCodec
	acceptQuery bool
}

func NewJWTBackend(codec *TokenCodec, acceptQuery bool) *JWTBackend {
	return &JWTBackend{codec: codec, acceptQuery: acceptQuery}
}

func (b *JWTBackend) Authenticate(ctx context.Context, rc RequestContext) (*User, error) {
	token := rc.BearerToken(b.acceptQuery)
	if token == "" {
		return nil, nil
	}
	u, err := b.codec.UserFromAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Chain tries each backend in order; the first identity wins.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

func (ch *Chain) Authenticate(ctx context.Context, rc RequestContext) (*User, error) {
	for _, b := range ch.backends {
		u, err := b.Authenticate(ctx, rc)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}

const identityResolverKey = "identityResolver"

// identityResolver memoizes the chain result so it runs at most once per
// request no matter how often the current user is read. Requests are handled
// by a single goroutine, so no locking is needed.
type identityResolver struct {
	chain    *Chain
	rc       RequestContext
	resolved bool
	user     *User
	err      error
}

func (r *identityResolver) resolve(ctx context.Context) (*User, error) {
	if !r.resolved {
		r.resolved = true
		r.user, r.err = r.chain.Authenticate(ctx, r.rc)
	}
	return r.user, r.err
}

// AuthenticationMiddleware attaches a lazy identity resolver to the request.
func AuthenticationMiddleware(chain *Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityResolverKey, &identityResolver{
			chain: chain,
			rc:    NewRequestContext(c.Request),
		})
		c.Next()
	}
}

// ResolveUser runs the chain (at most once) for this request.
func ResolveUser(c *gin.Context) (*User, error) {
	v, ok := c.Get(identityResolverKey)
	if !ok {
		return nil, nil
	}
	r, ok := v.(*identityResolver)
	if !ok {
		return nil, nil
	}
	return r.resolve(c.Request.Context())
}

// CurrentUser returns the authenticated user, or nil. Handlers behind
// RequireAuth can rely on a non-nil result.
func CurrentUser(c *gin.Context) *User {
	u, _ := ResolveUser(c)
	return u
}

// RequireAuth rejects requests without a resolvable identity before the
// handler runs.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := ResolveUser(c)
		if err != nil {
			respondServerError(c)
			c.Abort()
			return
		}
		if u == nil {
			respondError(c, http.StatusUnauthorized, ErrUnauthenticated.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

// OriginMiddleware validates Origin/Referer against the allowed list and
// sets CORS headers. In debug mode with no configured origins every origin
// is allowed.
func OriginMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}
	allowAll := cfg.Debug && len(allowed) == 0

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if allowAll {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// generateCSRFToken returns the random CSRF-binding value embedded in
// refresh tokens and echoed back to the client.
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
