package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pettycash/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionCookie configures the session cookie written on login
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// AuthHandler handles login and logout
type AuthHandler struct {
	service service.AuthService
	cookie  SessionCookie
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService, cookie SessionCookie) *AuthHandler {
	return &AuthHandler{service: s, cookie: cookie}
}

// Index sends authenticated users to the dashboard and everyone else to the login page
func (h *AuthHandler) Index(c *gin.Context) {
	if h.signedIn(c) {
		redirect(c, "/dashboard")
		return
	}
	redirect(c, "/login")
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	if h.signedIn(c) {
		redirect(c, "/dashboard")
		return
	}
	render(c, http.StatusOK, "login", gin.H{"Title": "Log in", "Next": safeNext(c.Query("next"))})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `form:"email"`
		Password string `form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		addFlash(c, FlashDanger, "Invalid email or password")
		render(c, http.StatusOK, "login", gin.H{"Title": "Log in"})
		return
	}
	next := safeNext(c.Query("next"))

	user, token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			addFlash(c, FlashDanger, "Invalid email or password")
			render(c, http.StatusOK, "login", gin.H{"Title": "Log in", "Email": req.Email, "Next": next})
			return
		}
		internalError(c, err)
		return
	}

	h.setSessionCookie(c, token, int(h.cookie.TTL.Seconds()))
	addFlash(c, FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.FullName))
	if next != "" {
		redirect(c, next)
		return
	}
	redirect(c, "/dashboard")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.Name); err == nil && token != "" {
		if err := h.service.Logout(c.Request.Context(), token); err != nil {
			// The cookie is still cleared; the token stays valid until it expires.
			slog.WarnContext(c.Request.Context(), "failed to revoke session", "error", err)
		}
	}
	h.setSessionCookie(c, "", -1)
	addFlash(c, FlashInfo, "You have been logged out")
	redirect(c, "/login")
}

func (h *AuthHandler) signedIn(c *gin.Context) bool {
	token, err := c.Cookie(h.cookie.Name)
	if err != nil || token == "" {
		return false
	}
	user, err := h.service.Authenticate(c.Request.Context(), token)
	return err == nil && user != nil
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext only allows redirects to local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return next
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(r gin.IRouter, authMW gin.HandlerFunc) {
	r.GET("/", h.Index)
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/logout", authMW, h.Logout)
}
