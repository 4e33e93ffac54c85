package core

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid token"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, auth AuthService, codec *TokenCodec, metrics *AuthMetrics, dbPing, cachePing Pinger) *gin.Engine {
	startedAt := time.Now()
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	chain := NewChain(
		NewPasswordBackend(auth),
		NewJWTBackend(codec, cfg.AcceptJWTOnURLQuery),
	)

	// Global middleware: origin/CORS -> lazy authentication
	r.Use(OriginMiddleware(cfg))
	r.Use(AuthenticationMiddleware(chain))

	r.GET("/healthz", func(c *gin.Context) {
		st := CollectSystemStatus(c.Request.Context(), dbPing, cachePing, metrics, startedAt)
		c.JSON(http.StatusOK, st)
	})

	r.POST("/login/", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		ctx := c.Request.Context()
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
			// Malformed input is answered exactly like a bad password.
			metrics.LoginFailure(ctx)
			respondError(c, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}

		rc := NewRequestContext(c.Request)
		rc.Username = req.Username
		rc.Password = req.Password

		user, err := chain.Authenticate(ctx, rc)
		if err != nil {
			respondServerError(c)
			return
		}
		if user == nil {
			metrics.LoginFailure(ctx)
			respondError(c, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}

		loggedIn, err := auth.Login(ctx, *user)
		if err != nil {
			respondServerError(c)
			return
		}

		csrfToken, err := generateCSRFToken()
		if err != nil {
			respondServerError(c)
			return
		}
		accessToken, err := codec.CreateAccessToken(loggedIn)
		if err != nil {
			respondServerError(c)
			return
		}
		refreshToken, err := codec.CreateRefreshToken(loggedIn, csrfToken)
		if err != nil {
			respondServerError(c)
			return
		}

		c.SetCookie(RefreshTokenCookieName, refreshToken,
			int(cfg.RefreshTTL.Seconds()), "/", "", !cfg.Debug, true)

		metrics.LoginSuccess(ctx)
		c.JSON(http.StatusOK, gin.H{
			"token":         accessToken,
			"refresh_token": refreshToken,
			"csrf_token":    csrfToken,
		})
	})

	r.POST("/verify-token/", func(c *gin.Context) {
		var req struct {
			Token string `json:"token"`
		}
		ctx := c.Request.Context()
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			metrics.VerifyFailure(ctx)
			respondError(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		if _, err := codec.UserFromAccessToken(ctx, req.Token); err != nil {
			if errors.Is(err, ErrInvalidToken) {
				metrics.VerifyFailure(ctx)
				respondError(c, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			respondServerError(c)
			return
		}

		metrics.VerifySuccess(ctx)
		c.Status(http.StatusOK)
	})

	r.GET("/me/", RequireAuth(), func(c *gin.Context) {
		u := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{
			"id":           u.ID,
			"username":     u.Username,
			"name":         u.DisplayName(),
			"email":        u.Email,
			"is_active":    u.IsActive,
			"is_staff":     u.IsStaff,
			"is_superuser": u.IsSuperuser,
			"last_login":   u.LastLogin,
			"created_at":   u.CreatedAt,
		})
	})

	return r
}
