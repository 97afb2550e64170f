package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/http/middleware"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/service"
)

// AuthHandler exposes the session lifecycle over HTTP.
type AuthHandler struct {
	Auth   *service.AuthService
	Cfg    config.Config
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg, Logger: logger}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password are required."})
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Role:     domain.Role(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	middleware.SetSessionCookies(c, h.Cfg, result)
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"accessToken": result.AccessToken,
		"user":        result.User,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password are required."})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	middleware.SetSessionCookies(c, h.Cfg, result)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": result.AccessToken,
		"user":        result.User,
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refresh, _ := c.Cookie(middleware.CookieRefresh)

	result, err := h.Auth.Refresh(c.Request.Context(), refresh)
	if err != nil {
		h.respondError(c, err)
		return
	}

	middleware.SetSessionCookies(c, h.Cfg, result)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": result.AccessToken,
	})
}

// Logout succeeds even when the cookie is absent or the session already
// gone; the client ends up logged out either way.
func (h *AuthHandler) Logout(c *gin.Context) {
	refresh, _ := c.Cookie(middleware.CookieRefresh)

	if err := h.Auth.Logout(c.Request.Context(), refresh); err != nil {
		h.respondError(c, err)
		return
	}

	middleware.ClearSessionCookies(c, h.Cfg)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out."})
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Session is not valid"})
		return
	}

	if err := h.Auth.LogoutAll(c.Request.Context(), authCtx.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	middleware.ClearSessionCookies(c, h.Cfg)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out everywhere."})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email is required."})
		return
	}

	resetToken, err := h.Auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The raw token is returned alongside the email so the flow still
	// works where mail delivery is not configured.
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Password reset instructions have been sent.",
		"resetToken": resetToken,
	})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	resetToken := c.Query("token")

	var req struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "New password is required."})
		return
	}

	if err := h.Auth.ResetPassword(c.Request.Context(), resetToken, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset."})
}

func (h *AuthHandler) Me(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Session is not valid"})
		return
	}

	user, err := h.Auth.Profile(c.Request.Context(), authCtx.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) Sessions(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Session is not valid"})
		return
	}

	sessions, err := h.Auth.Sessions(c.Request.Context(), authCtx.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"success": false, "message": authErr.Message})
		return
	}
	if h.Logger != nil {
		h.Logger.Error("unexpected handler error", zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Something went wrong."})
}
