package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/forge-api/internal/api/shared"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service"
)

// ProviderHandler handles the administrative provider and account API.
// Request payloads may carry raw API keys; nothing here logs them and
// responses never include credentials.
type ProviderHandler struct {
	providerService service.ProviderService
	logger          *slog.Logger
	validator       *validator.Validate
}

// NewProviderHandler creates a new ProviderHandler with the given dependencies.
func NewProviderHandler(providerService service.ProviderService, logger *slog.Logger) *ProviderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderHandler{
		providerService: providerService,
		logger:          logger.With("component", "provider_handler"),
		validator:       validator.New(),
	}
}

// CreateProvider handles POST /providers.
func (h *ProviderHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	p, err := h.providerService.CreateProvider(r.Context(), req.Name, req.APIEndpoint, req.AuthType, req.Competencies)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, p)
}

// ListProviders handles GET /providers.
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.providerService.ListProviders(r.Context())
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, providers)
}

// GetProviderStatus handles GET /providers/{id}. It returns the provider
// with the budget state of all its accounts.
func (h *ProviderHandler) GetProviderStatus(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	status, err := h.providerService.GetProviderStatus(r.Context(), providerID)
	if err != nil {
		code := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, code, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// UpdateProviderStatus handles PATCH /providers/{id}/status.
func (h *ProviderHandler) UpdateProviderStatus(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateProviderStatusRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	p, err := h.providerService.UpdateProviderStatus(r.Context(), providerID, domain.ProviderStatus(req.Status))
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// AddAccount handles POST /providers/{id}/accounts. The API key in the
// request is encrypted by the service before it is stored.
func (h *ProviderHandler) AddAccount(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var req AddAccountRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	account, err := h.providerService.AddAccount(r.Context(), providerID, req.Name, req.APIKey, req.TokenLimit, req.ResetDate)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	// The Account type never serializes its credentials field.
	shared.RespondWithJSON(w, r, http.StatusCreated, account)
}

// UpdateAccountStatus handles PATCH /accounts/{id}/status.
func (h *ProviderHandler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAccountStatusRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	account, err := h.providerService.UpdateAccountStatus(r.Context(), accountID, domain.AccountStatus(req.Status))
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, account)
}

// AdjustTokenLimit handles PATCH /accounts/{id}/limit.
func (h *ProviderHandler) AdjustTokenLimit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var req AdjustTokenLimitRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	account, err := h.providerService.AdjustTokenLimit(r.Context(), accountID, req.TokenLimit)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, account)
}

// ResetAccountTokens handles POST /accounts/{id}/reset. It zeroes the
// account's usage immediately, independent of the scheduled reset.
func (h *ProviderHandler) ResetAccountTokens(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	account, err := h.providerService.ResetAccountTokens(r.Context(), accountID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, account)
}

// TestConnection handles POST /accounts/{id}/test. It verifies the stored
// credentials against the live provider.
func (h *ProviderHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.providerService.TestConnection(r.Context(), accountID); err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusInternalServerError {
			// A failed upstream handshake is the account's problem, not ours.
			shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Connection test failed", h.logger, err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// RunTokenResetSweep handles POST /tokens/reset. It triggers the same
// sweep the scheduler runs daily.
func (h *ProviderHandler) RunTokenResetSweep(w http.ResponseWriter, r *http.Request) {
	if err := h.providerService.RunTokenResetSweep(r.Context()); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Fallbacks handles GET /providers/fallback. It returns ranked
// alternative providers for a task type, excluding the primary provider.
func (h *ProviderHandler) Fallbacks(w http.ResponseWriter, r *http.Request) {
	taskType := r.URL.Query().Get("task_type")
	if taskType == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "task_type parameter required")
		return
	}

	primaryID, err := uuid.Parse(r.URL.Query().Get("primary_provider_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid primary_provider_id parameter")
		return
	}

	fallbacks, err := h.providerService.Fallbacks(r.Context(), taskType, primaryID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, fallbacks)
}
