package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim. Access and thirdparty tokens
// authorize API requests; refresh tokens may only be exchanged for new
// access tokens.
const (
	TokenTypeAccess     = "access"
	TokenTypeRefresh    = "refresh"
	TokenTypeThirdparty = "thirdparty"
)

const (
	jwtAlgorithm = "HS256"

	// Bearer prefix in "Authorization: JWT <token>" and the name of the GET
	// query parameter accepted when the fallback is enabled.
	jwtAuthHeaderPrefix = "JWT"
	jwtQueryParam       = "JWT"
)

// RefreshTokenCookieName is the cookie the login endpoint stores the refresh
// token under.
const RefreshTokenCookieName = "refreshToken"

// Claims is the signed token payload. The user is identified by the standard
// "sub" claim holding the decimal user ID.
type Claims struct {
	Type      string `json:"type"`
	CSRFToken string `json:"csrf_token,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the service's JWTs and resolves token
// subjects back to users.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      UserRepository
}

func NewTokenCodec(cfg Config, users UserRepository) *TokenCodec {
	return &TokenCodec{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		users:      users,
	}
}

// Encode stamps iat/exp onto claims and returns the signed compact token.
func (tc *TokenCodec) Encode(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
}

// Decode verifies signature and expiry. Every failure mode (malformed token,
// bad signature, missing or passed exp) collapses into ErrInvalidToken.
func (tc *TokenCodec) Decode(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return tc.secret, nil },
		jwt.WithValidMethods([]string{jwtAlgorithm}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// CreateAccessToken issues an access token for user.
func (tc *TokenCodec) CreateAccessToken(user User) (string, error) {
	return tc.Encode(Claims{
		Type:             TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(user.ID, 10)},
	}, tc.accessTTL)
}

// CreateRefreshToken issues a refresh token for user carrying the
// CSRF-binding value handed back to the client alongside it.
func (tc *TokenCodec) CreateRefreshToken(user User, csrfToken string) (string, error) {
	return tc.Encode(Claims{
		Type:             TokenTypeRefresh,
		CSRFToken:        csrfToken,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(user.ID, 10)},
	}, tc.refreshTTL)
}

// UserFromAccessToken decodes token and loads the active user it names.
// Tokens of any type other than access/thirdparty are invalid here.
func (tc *TokenCodec) UserFromAccessToken(ctx context.Context, token string) (User, error) {
	claims, err := tc.Decode(token)
	if err != nil {
		return User{}, err
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeThirdparty {
		return User{}, ErrInvalidToken
	}
	return tc.userFromClaims(ctx, claims)
}

// UserFromRefreshToken is the refresh-typed counterpart of
// UserFromAccessToken.
func (tc *TokenCodec) UserFromRefreshToken(ctx context.Context, token string) (User, error) {
	claims, err := tc.Decode(token)
	if err != nil {
		return User{}, err
	}
	if claims.Type != TokenTypeRefresh {
		return User{}, ErrInvalidToken
	}
	return tc.userFromClaims(ctx, claims)
}

// userFromClaims maps the sub claim to an active user. A token whose subject
// no longer resolves (deleted or deactivated user) is treated as invalid
// rather than as a server error.
func (tc *TokenCodec) userFromClaims(ctx context.Context, claims Claims) (User, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	rec, err := tc.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	if !rec.IsActive {
		return User{}, ErrInvalidToken
	}
	return rec.User(), nil
}
