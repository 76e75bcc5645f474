package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/metrics"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/pkg/httpx"
	"github.com/castellan/castellan/pkg/slogx"
)

// SessionsHandler handles authentication and the session lifecycle.
type SessionsHandler struct {
	Auth     *service.AuthService
	Sessions *service.SessionsService
	MFA      *service.MFAService
	Social   *service.SocialService
	Metrics  metrics.Recorder
}

// HandleAuthenticate handles POST /v1/users/authenticate
//
//	@Summary		Authenticate with username and password
//	@Description	Verifies the credential and returns a single-use code plus the session minted alongside it.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		AuthenticateRequest	true	"Credentials"
//	@Success		200		{object}	AuthenticateResponse
//	@Failure		400		{object}	ErrorResponse	"Malformed request or client id"
//	@Failure		401		{object}	ErrorResponse	"Bad credentials or inactive account"
//	@Router			/v1/users/authenticate [post].
func (h *SessionsHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validClientID(req.ClientID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_id must be a UUID")
		return
	}

	result, err := h.Auth.Authenticate(ctx, service.AuthenticateCommand{
		Username:      req.Username,
		Password:      req.Password,
		ClientID:      req.ClientID,
		Scopes:        httpx.ParseSpaceDelimitedFields(req.Scope),
		CodeChallenge: req.CodeChallenge,
	})
	if h.Metrics != nil {
		h.Metrics.RecordLogin(err == nil)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, AuthenticateResponse{
		Code:      result.Code,
		SessionID: result.SessionID,
		UserID:    result.UserID,
	})
}

// HandleCreate handles POST /v1/sessions
//
//	@Summary		Create a session
//	@Description	Exchanges a single-use code, a social gateway assertion, or a fresh TOTP code for a session, selected by grant_type.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateSessionRequest	true	"Grant"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	ErrorResponse	"Malformed request"
//	@Failure		401		{object}	ErrorResponse	"Invalid code, assertion, or TOTP code"
//	@Failure		404		{object}	ErrorResponse	"Unknown code or account"
//	@Router			/v1/sessions [post].
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validClientID(req.ClientID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_id must be a UUID")
		return
	}
	scopes := httpx.ParseSpaceDelimitedFields(req.Scope)

	var (
		session domain.Session
		err     error
	)
	switch req.GrantType {
	case "code":
		session, err = h.Sessions.CreateSessionFromCode(ctx, req.Code, req.CodeChallenge, domain.MethodPassword)
	case "social":
		session, err = h.Social.CreateSocialSession(ctx, req.Assertion, req.ClientID, scopes, req.CodeChallenge)
	case "mfa":
		session, err = h.MFA.CreateMFASession(ctx, req.UserID, req.ClientID, scopes, req.CodeChallenge, req.TOTPCode)
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type",
			"grant_type must be one of: code, social, mfa")
		return
	}
	if err != nil {
		log.WarnContext(ctx, "session creation rejected", "grant_type", req.GrantType, "err", err)
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

// HandleValidate handles POST /v1/sessions/{id}/validate
//
//	@Summary		Validate a session
//	@Description	Runs the validation gates: ownership, scope, liveness, client binding, challenge binding, method assurance.
//	@Tags			Sessions
//	@Accept			json
//	@Param			id		path	string					true	"Session id"
//	@Param			request	body	ValidateSessionRequest	true	"Conditions"
//	@Success		204		"Session satisfies every condition"
//	@Failure		401		{object}	ErrorResponse	"A gate rejected the session"
//	@Failure		404		{object}	ErrorResponse	"Unknown session"
//	@Router			/v1/sessions/{id}/validate [post].
func (h *SessionsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	method, err := domain.ParseAuthenticationMethod(req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	err = h.Sessions.Validate(r.Context(), r.PathValue("id"), domain.SessionValidation{
		UserID:         req.UserID,
		RequiredScopes: httpx.ParseSpaceDelimitedFields(req.Scope),
		ClientID:       req.ClientID,
		CodeChallenge:  req.CodeChallenge,
		Method:         method,
	})
	if h.Metrics != nil {
		h.Metrics.RecordSessionValidation(validationOutcome(err))
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validationOutcome labels a validation result for the metrics counter. The
// per-gate detail stays internal; the response body never carries it.
func validationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionOwnership):
		return "ownership"
	case errors.Is(err, domain.ErrInsufficientScope):
		return "scope"
	case errors.Is(err, domain.ErrSessionExpired):
		return "expired"
	case errors.Is(err, domain.ErrClientMismatch):
		return "client"
	case errors.Is(err, domain.ErrChallengeMismatch):
		return "challenge"
	case errors.Is(err, domain.ErrMethodMismatch):
		return "method"
	default:
		return "error"
	}
}

// HandleRevoke handles DELETE /v1/sessions/{id}
//
//	@Summary	Revoke a session
//	@Tags		Sessions
//	@Param		id	path	string	true	"Session id"
//	@Success	204	"Session revoked (idempotent)"
//	@Failure	404	{object}	ErrorResponse	"Unknown session"
//	@Router		/v1/sessions/{id} [delete].
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Revoke(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListForUser handles GET /v1/users/{id}/sessions.
func (h *SessionsHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.ListUserSessions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// validClientID enforces UUID-shaped client identifiers at the boundary.
// Internally the client id is an opaque string.
func validClientID(clientID string) bool {
	_, err := uuid.Parse(clientID)
	return err == nil
}
