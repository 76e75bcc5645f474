package http

import (
	"encoding/json"
	"net/http"

	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/pkg/httpx"
	"github.com/castellan/castellan/pkg/slogx"
)

// MFAHandler handles TOTP enrollment endpoints.
type MFAHandler struct {
	MFA *service.MFAService
}

// HandleEnroll handles POST /v1/users/{id}/mfa/enroll
//
//	@Summary		Enroll in TOTP MFA
//	@Description	Generates a TOTP secret. MFA is not enabled until the code is verified via the activate endpoint.
//	@Tags			MFA
//	@Produce		json
//	@Param			id	path		string	true	"User id"
//	@Success		200	{object}	MFAEnrollResponse	"Secret and otpauth URL (shown once)"
//	@Failure		400	{object}	ErrorResponse		"MFA already enabled"
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/users/{id}/mfa/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrollment, err := h.MFA.EnrollTOTP(ctx, r.PathValue("id"))
	if err != nil {
		slogx.FromContext(ctx).WarnContext(ctx, "mfa enroll rejected", "err", err)
		writeDomainError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, MFAEnrollResponse{
		Secret:  enrollment.Secret,
		URL:     enrollment.URL,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleActivate handles POST /v1/users/{id}/mfa/activate
//
//	@Summary		Activate TOTP MFA
//	@Description	Verifies a code against the enrolled secret and switches MFA on.
//	@Tags			MFA
//	@Accept			json
//	@Param			id		path	string				true	"User id"
//	@Param			request	body	MFAActivateRequest	true	"Enrolled secret and a fresh code"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse	"Invalid TOTP code"
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/users/{id}/mfa/activate [post].
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var req MFAActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.MFA.ActivateTOTP(r.Context(), r.PathValue("id"), req.Secret, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles DELETE /v1/users/{id}/mfa.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	if err := h.MFA.DisableTOTP(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
