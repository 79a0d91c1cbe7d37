package handler

import (
	"encoding/json"
	"go-auth-api/common"
	"go-auth-api/model"
	"go-auth-api/service"
	"io"
	"net/http"
)

// AuthHandler exposes the authentication and session lifecycle endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

type tokenResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	Account      *model.User `json:"account,omitempty"`
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an account and opens its first session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.RegisterRequest  true  "registration payload"
// @Success      201      {object}  handler.tokenResponse
// @Failure      400      {object}  common.AppError
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, pair, appErr := h.authService.Register(&req)
	if appErr != nil {
		return appErr
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		Success:      true,
		Message:      "User created successfully",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Account:      user,
	})
	return nil
}

// Login godoc
// @Summary      Authenticate a user
// @Description  Verifies credentials and issues a fresh token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "login payload"
// @Success      200      {object}  handler.tokenResponse
// @Failure      400      {object}  common.AppError
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, pair, appErr := h.authService.Login(&req)
	if appErr != nil {
		return appErr
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Success:      true,
		Message:      "Login successful",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Account:      user,
	})
	return nil
}

// Refresh godoc
// @Summary      Rotate the session tokens
// @Description  Exchanges a valid refresh token for a new access/refresh pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.RefreshRequest  true  "refresh payload"
// @Success      200      {object}  handler.tokenResponse
// @Failure      401      {object}  common.AppError
// @Failure      403      {object}  common.AppError
// @Router       /refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		return appErr
	}
	if req.RefreshToken == "" {
		return common.NewAppError(common.KindNoToken, http.StatusUnauthorized, "Refresh token required", nil)
	}

	pair, appErr := h.authService.Refresh(req.RefreshToken)
	if appErr != nil {
		return appErr
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Success:      true,
		Message:      "Token refreshed successfully",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	return nil
}

// Logout godoc
// @Summary      End the session
// @Description  Clears the stored refresh token; idempotent
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.LogoutRequest  true  "logout payload"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  common.AppError
// @Router       /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LogoutRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		return appErr
	}
	if req.RefreshToken == "" {
		return common.ErrValidation("Refresh token required", nil)
	}

	if appErr := h.authService.Logout(req.RefreshToken); appErr != nil {
		return appErr
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
	return nil
}

// Me godoc
// @Summary      Get the authenticated account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  common.AppError
// @Router       /me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return common.ErrNoToken()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": user,
	})
	return nil
}

// decodeBody decodes without running struct validation, for payloads whose
// absence has a dedicated error shape rather than a generic VALIDATION_ERROR.
func decodeBody(r *http.Request, payload interface{}) *common.AppError {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil && err != io.EOF {
		return common.ErrValidation("Invalid request body", err)
	}
	return nil
}
