package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veriboard/internal/models"
	"veriboard/internal/utils"
)

// AuthService is the part of services.AuthService the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	VerifyLoginOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.AuthResponse, error)
	VerifyResetCode(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID int) (*models.User, error)
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// @Summary      Регистрация
// @Description  Creates the account right away or sends a register code with a registration token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.RegisterRequest  true  "Account data"
// @Success      200   {object}  models.AuthResponse
// @Success      201   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      429   {object}  errorBody
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		logFields(c, logrus.Fields{"email": utils.NormalizeEmail(req.Email)}).WithError(err).Info("[auth][register] rejected")
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if resp.Token != "" {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// @Summary      Подтверждение email
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyEmailRequest  true  "Code and registration token"
// @Success      201   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary      Вход в систему
// @Description  Returns a session token, or otpRequired=true when sign-in codes are enabled
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.LoginRequest  true  "Credentials"
// @Success      200   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      429   {object}  errorBody
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Код входа (2FA)
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyOTPRequest  true  "Email and code"
// @Success      200   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Router       /api/auth/verify-login-otp [post]
func (h *AuthHandler) VerifyLoginOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.VerifyLoginOTP(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Забыли пароль
// @Description  Always answers with the same body whether or not the account exists
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ForgotPasswordRequest  true  "Email"
// @Success      200   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Router       /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.ForgotPassword(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Проверка кода сброса
// @Description  Consumes the reset code and returns a single-use reset token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyOTPRequest  true  "Email and code"
// @Success      200   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Router       /api/auth/verify-reset-code [post]
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.VerifyResetCode(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Сброс пароля
// @Description  Accepts either email+code or a reset token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ResetPasswordRequest  true  "New password"
// @Success      200   {object}  models.AuthResponse
// @Failure      400   {object}  errorBody
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.authService.ResetPassword(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Текущий пользователь
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  errorBody
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
