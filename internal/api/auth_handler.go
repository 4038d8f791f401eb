package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/forge-api/internal/api/shared"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
	validator   *validator.Validate
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService service.UserService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		userService: userService,
		logger:      logger.With("component", "auth_handler"),
		validator:   validator.New(),
	}
}

// Register handles the /auth/register endpoint.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	role := domain.UserRole(req.Role)
	if role == "" {
		role = domain.UserRoleUser
	}

	user, token, err := h.userService.Register(r.Context(), req.Email, req.Password, role)
	if err != nil {
		status := MapErrorToStatusCode(err)
		// Never log the password. The email is enough to trace the request.
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		UserID: user.ID,
		Token:  token,
	})
}

// Login handles the /auth/login endpoint.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		UserID: user.ID,
		Token:  token,
	})
}
