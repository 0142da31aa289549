// Package api exposes the magic-link flows over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/getsesame/sesame/domain"
	"github.com/getsesame/sesame/flow"
	"github.com/getsesame/sesame/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionCookieName carries the session bearer token after a successful
// verification.
const SessionCookieName = "sesame_session"

type Handler struct {
	login    *flow.LoginManager
	verifier *flow.Verifier
	sessions session.Strategy
	policy   domain.Policy
	log      *zap.Logger

	limiter    flow.RateLimiter
	rateLimit  int
	rateWindow time.Duration
}

func NewHandler(login *flow.LoginManager, verifier *flow.Verifier, sessions session.Strategy, policy domain.Policy, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		login:    login,
		verifier: verifier,
		sessions: sessions,
		policy:   policy,
		log:      log,
	}
}

// SetRateLimiter bounds verification attempts per client IP.
func (h *Handler) SetRateLimiter(l flow.RateLimiter, limit int, window time.Duration) {
	h.limiter = l
	h.rateLimit = limit
	h.rateWindow = window
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/login", h.HandleLogin)
	g.POST("/logout", h.HandleLogout)

	// The emailed link carries id and secret as path segments and ends
	// with a slash.
	e.GET("/verify/:id/:secret", h.HandleVerify)
	e.GET("/verify/:id/:secret/", h.HandleVerify)
}

// requestContext reduces the inbound request to the surface the core
// consults.
func requestContext(c echo.Context) domain.RequestContext {
	cookies := make(map[string]string)
	for _, ck := range c.Request().Cookies() {
		cookies[ck.Name] = ck.Value
	}
	return domain.RequestContext{
		Headers:    c.Request().Header,
		RemoteAddr: c.Request().RemoteAddr,
		Cookies:    cookies,
	}
}

// HandleLogin accepts an email address and dispatches a login link. The
// response is identical whether or not the address belongs to an account.
func (h *Handler) HandleLogin(c echo.Context) error {
	var body struct {
		Email       string `json:"email"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.Bind(&body); err != nil || body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "email is required"})
	}

	req := requestContext(c)

	// A login request starts a fresh authentication; drop any session the
	// requester still holds.
	if old, err := c.Cookie(SessionCookieName); err == nil && old.Value != "" {
		if err := h.sessions.Delete(c.Request().Context(), old.Value); err != nil {
			h.log.Warn("failed to drop previous session", zap.Error(err))
		}
	}

	t, err := h.login.Request(c.Request().Context(), body.Email, body.RedirectURL, req)
	if err != nil {
		h.log.Error("login request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "could not process login request"})
	}

	if h.policy.RequireSameBrowser {
		c.SetCookie(&http.Cookie{
			Name:     h.policy.CookieName,
			Value:    t.CookieValue,
			Path:     "/",
			MaxAge:   int(h.policy.MaxTokenLifetime / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "check your email"})
}

// HandleVerify authenticates a verification-link visit. Every failure mode
// renders the same generic outcome.
func (h *Handler) HandleVerify(c echo.Context) error {
	req := requestContext(c)

	if h.limiter != nil {
		key := "verify:" + req.ClientIP()
		allowed, _, err := h.limiter.Allow(c.Request().Context(), key, h.rateLimit, h.rateWindow)
		if err != nil {
			h.log.Error("rate limiter failed", zap.Error(err))
			return h.loginFailed(c)
		}
		if !allowed {
			h.log.Warn("verification rate limited", zap.String("key", key))
			return h.loginFailed(c)
		}
	}

	res, err := h.verifier.Verify(c.Request().Context(), c.Param("id"), c.Param("secret"), req)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidToken) && !errors.Is(err, domain.ErrUserNotFound) {
			h.log.Error("verification failed", zap.Error(err))
		}
		return h.loginFailed(c)
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    res.Session.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusSeeOther, res.RedirectURL)
}

// HandleLogout drops the caller's session.
func (h *Handler) HandleLogout(c echo.Context) error {
	if ck, err := c.Cookie(SessionCookieName); err == nil && ck.Value != "" {
		if err := h.sessions.Delete(c.Request().Context(), ck.Value); err != nil {
			h.log.Warn("failed to delete session", zap.Error(err))
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *Handler) loginFailed(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"message": "login failed"})
}
