package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/pkg/httpx"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthenticateRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ClientID      string `json:"client_id"`
	Scope         string `json:"scope"`
	CodeChallenge string `json:"code_challenge"`
}

type AuthenticateResponse struct {
	Code      string `json:"code"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type CreateSessionRequest struct {
	// Exactly one of Code, Assertion, or (UserID+TOTPCode) selects the flow.
	GrantType     string `json:"grant_type"` // code, social, mfa
	Code          string `json:"code,omitempty"`
	Assertion     string `json:"assertion,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	TOTPCode      string `json:"totp_code,omitempty"`
	ClientID      string `json:"client_id"`
	Scope         string `json:"scope"`
	CodeChallenge string `json:"code_challenge"`
}

type SessionResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ClientID  string     `json:"client_id"`
	Scopes    []string   `json:"scopes"`
	Method    string     `json:"method"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type ValidateSessionRequest struct {
	UserID        string `json:"user_id"`
	Scope         string `json:"scope"`
	ClientID      string `json:"client_id"`
	CodeChallenge string `json:"code_challenge"`
	Method        string `json:"method"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	MFAEnabled bool      `json:"mfa_enabled"`
	RoleIDs    []string  `json:"role_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ChangeEmailRequest struct {
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	Password string `json:"password"`
}

type AssignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type CreateRoleRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MFAEnrollResponse struct {
	Secret  string `json:"secret"`
	URL     string `json:"url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

type MFAActivateRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func toUserResponse(u domain.User) UserResponse {
	roleIDs := make([]string, 0, len(u.RoleAssignments))
	for _, ra := range u.RoleAssignments {
		roleIDs = append(roleIDs, ra.RoleID)
	}
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Credential.Username,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		MFAEnabled: u.Credential.MFAEnabled,
		RoleIDs:    roleIDs,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func toSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		ClientID:  s.ClientID,
		Scopes:    s.Scopes,
		Method:    s.Method.String(),
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
// Validation gate failures intentionally collapse to 401 so a probing caller
// learns nothing about which gate rejected them.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidAssertion),
		errors.Is(err, service.ErrInvalidTOTPCode):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, domain.ErrCodeConsumed),
		errors.Is(err, domain.ErrCodeExpired):
		writeError(w, http.StatusUnauthorized, "invalid_code", err.Error())
	case errors.Is(err, domain.ErrSessionOwnership),
		errors.Is(err, domain.ErrInsufficientScope),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrClientMismatch),
		errors.Is(err, domain.ErrChallengeMismatch),
		errors.Is(err, domain.ErrMethodMismatch):
		writeError(w, http.StatusUnauthorized, "invalid_session", "session validation failed")
	case errors.Is(err, service.ErrMFAAlreadyEnabled),
		errors.Is(err, service.ErrMFANotEnabled):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, code int, name, description string) {
	httpx.WriteJSON(w, code, ErrorResponse{Error: name, ErrorDescription: description})
}
