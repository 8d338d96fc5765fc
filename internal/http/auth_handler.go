package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"savory-auth/internal/email"
	"savory-auth/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de cuentas y sesiones.
type AuthHandler struct {
	logger      *zap.Logger
	authServ    *service.AuthService
	resetServ   *service.ResetService
	emailSender email.Sender
	baseURL     string
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, resetServ *service.ResetService, emailSender email.Sender, baseURL string) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		authServ:    authServ,
		resetServ:   resetServ,
		emailSender: emailSender,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, token, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session, "token": token})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_ = h.authServ.Logout(req.Token)
	c.Status(http.StatusNoContent)
}

// Forgot maneja POST /auth/forgot: emite el token y manda el link por mail.
// Que el email no exista se le dice al caller, igual que el flujo original.
func (h *AuthHandler) Forgot(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	receipt, err := h.resetServ.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no account with that email"})
			return
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		default:
			h.logger.Error("request reset failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not request reset"})
			return
		}
	}

	// El token viaja como segmento opaco del path del link.
	resetURL := fmt.Sprintf("%s/account/reset/%s", h.baseURL, receipt.Token)
	if h.emailSender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		return
	}
	if err := h.emailSender.SendPasswordReset(c.Request.Context(), receipt.User.Email, resetURL, receipt.ExpiresAt); err != nil {
		h.logger.Warn("send reset mail failed", zap.Error(err), zap.String("email", receipt.User.Email))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset_sent"})
}

// CheckReset maneja GET /account/reset/:token. Valida sin consumir, para que
// el front muestre el formulario solo con un token vivo.
func (h *AuthHandler) CheckReset(c *gin.Context) {
	user, err := h.resetServ.ValidateToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrResetTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password reset is invalid or has expired"})
			return
		}
		h.logger.Error("validate reset token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email})
}

// Reset maneja POST /account/reset/:token: chequea la confirmacion, consume
// el token y devuelve la sesion nueva.
func (h *AuthHandler) Reset(c *gin.Context) {
	var req struct {
		Password        string `json:"password" binding:"required"`
		PasswordConfirm string `json:"password_confirm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// La confirmacion se chequea antes de consumir: un mismatch no quema el token.
	if req.Password != req.PasswordConfirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrPasswordMismatch.Error()})
		return
	}

	session, token, err := h.resetServ.ConsumeToken(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrResetTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password reset is invalid or has expired"})
			return
		}
		h.logger.Error("consume reset token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session, "token": token})
}
