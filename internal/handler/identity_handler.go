package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"identity-service/internal/models"
	"identity-service/internal/service"
	"identity-service/internal/token"
	"identity-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdentityHandler handles HTTP requests for the identity flows
type IdentityHandler struct {
	identityService *service.IdentityService
	logger          *zap.Logger
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identityService *service.IdentityService, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
		logger:          logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(errMsg, message string) Response {
	return Response{
		Success: false,
		Error:   errMsg,
		Message: message,
	}
}

// RegisterRoutes registers all identity routes
func (h *IdentityHandler) RegisterRoutes(router chi.Router, authMiddleware func(http.Handler) http.Handler) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/register-admin", h.RegisterAdmin)
		r.Post("/verify", h.Verify)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/me", h.Me)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListAccounts)
		r.Get("/region/{regionID}", h.AccountsByRegion)
		r.Post("/{accountID}/promote", h.PromoteToAdmin)
	})
}

// Register handles account registration
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var draft service.RegisterDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.identityService.Register(ctx, &draft)
	if err != nil {
		h.respondServiceError(w, err, "Failed to register account")
		return
	}

	status := http.StatusCreated
	if !result.RegionFound {
		// Soft negative outcome: the request was well-formed but the
		// referenced region does not exist.
		status = http.StatusOK
	}

	h.respondWithJSON(w, status, successResponse(result, result.Message))
	h.logger.Info("Registration handled via HTTP",
		util.Bool("region_found", result.RegionFound),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "Register"),
	)
}

// RegisterAdmin handles admin account registration
func (h *IdentityHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var draft service.RegisterDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.identityService.RegisterAdmin(ctx, &draft)
	if err != nil {
		h.respondServiceError(w, err, "Failed to register admin account")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, successResponse(result, result.Message))
}

// Verify handles OTP verification
func (h *IdentityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.identityService.Verify(ctx, req.Email, req.Code)
	if err != nil {
		h.respondServiceError(w, err, "Failed to verify account")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, "Account verified"))
}

// ResendOTP handles challenge reissue
func (h *IdentityHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.identityService.ResendOTP(ctx, req.Email)
	if err != nil {
		h.respondServiceError(w, err, "Failed to resend OTP")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, result.Message))
}

// Login handles credential login and token issuance
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	pair, err := h.identityService.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err, "Failed to log in")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(pair, "Login successful"))
}

// Refresh handles access-token refresh
func (h *IdentityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	accessToken, err := h.identityService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.respondServiceError(w, err, "Failed to refresh token")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(map[string]string{
		"access_token": accessToken,
	}, "Token refreshed"))
}

// Me echoes the authenticated identity snapshot
func (h *IdentityHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondWithJSON(w, http.StatusUnauthorized, errorResponse("unauthorized", "Authentication required"))
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(h.identityService.Me(claims), "Authenticated"))
}

// PromoteToAdmin escalates an account to the admin role
func (h *IdentityHandler) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		h.respondWithJSON(w, http.StatusUnauthorized, errorResponse("unauthorized", "Authentication required"))
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid account ID")
		return
	}

	account, err := h.identityService.PromoteToAdmin(ctx, claims, accountID)
	if err != nil {
		h.respondServiceError(w, err, "Failed to promote account")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(account, "Account promoted to admin"))
}

// AccountsByRegion lists accounts registered under a region
func (h *IdentityHandler) AccountsByRegion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	regionID, err := strconv.ParseInt(chi.URLParam(r, "regionID"), 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid region ID")
		return
	}

	accounts, err := h.identityService.AccountsByRegion(ctx, regionID)
	if err != nil {
		h.respondServiceError(w, err, "Failed to list accounts for region")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(accounts, "Accounts retrieved"))
}

// ListAccounts lists every account (admin only)
func (h *IdentityHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ClaimsFromContext(ctx)
	if !ok || (claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin) {
		h.respondWithJSON(w, http.StatusForbidden, errorResponse("permission denied", "Admin role required"))
		return
	}

	accounts, err := h.identityService.ListAccounts(ctx)
	if err != nil {
		h.respondServiceError(w, err, "Failed to list accounts")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(accounts, "Accounts retrieved"))
}

// HealthCheck handles service health check
func (h *IdentityHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.identityService.HealthCheck(r.Context()); err != nil {
		h.respondWithError(w, http.StatusServiceUnavailable, err, "Service unhealthy")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Service is healthy"))
}

// Helper Methods

func (h *IdentityHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func (h *IdentityHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, errorResponse(err.Error(), message))
}

// respondServiceError maps a service error to a transport status.
// Domain validation failures carry their reason to the caller;
// infrastructure failures are logged in full and surfaced opaquely.
func (h *IdentityHandler) respondServiceError(w http.ResponseWriter, err error, message string) {
	if service.IsDomainError(err) {
		h.respondWithError(w, h.getStatusCode(err), err, message)
		return
	}

	h.logger.Error("Infrastructure failure",
		util.ErrorField(err),
		util.String("message", message),
	)
	h.respondWithJSON(w, http.StatusServiceUnavailable,
		errorResponse("service unavailable", "The service is temporarily unavailable"))
}

// getStatusCode determines the appropriate HTTP status code for a
// domain validation failure
func (h *IdentityHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrRegionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrInvalidEmailDomain):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOTPInvalidOrExpired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrWrongPassword), errors.Is(err, service.ErrAccountNotVerified):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrMalformedToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
