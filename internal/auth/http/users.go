// Package http exposes the authentication core over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/pkg/httpx"
	"github.com/castellan/castellan/pkg/slogx"
)

// UsersHandler handles registration and user administration endpoints.
type UsersHandler struct {
	Register *service.RegisterService
	Users    *service.UserService
}

// HandleRegister handles POST /v1/users
//
//	@Summary		Register a new user
//	@Description	Creates a user account with an email, username, and password.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest	true	"Registration details"
//	@Success		201		{object}	UserResponse
//	@Failure		400		{object}	ErrorResponse	"Invalid email, username, or password"
//	@Failure		409		{object}	ErrorResponse	"Email or username already in use"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.Register.Register(ctx, service.RegisterCommand{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		slogx.FromContext(ctx).WarnContext(ctx, "registration rejected", "err", err)
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleList handles GET /v1/users
//
//	@Summary		List users
//	@Description	Returns a page of users. Sortable by id, email, username, created_at, updated_at.
//	@Tags			Users
//	@Produce		json
//	@Param			sort_by		query		string	false	"Sort column"		default(created_at)
//	@Param			sort_order	query		string	false	"asc or desc"		default(asc)
//	@Param			limit		query		int		false	"Page size (max 100)"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{array}		UserResponse
//	@Failure		400			{object}	ErrorResponse	"Unknown sort column"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	users, err := h.Users.ListUsers(r.Context(), service.ListUsersQuery{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/users/{id}
//
//	@Summary	Fetch a user by id
//	@Tags		Users
//	@Produce	json
//	@Param		id	path		string	true	"User id"
//	@Success	200	{object}	UserResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleActivate handles POST /v1/users/{id}/activate.
func (h *UsersHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.Users.Activate)
}

// HandleDeactivate handles POST /v1/users/{id}/deactivate.
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.Users.Deactivate)
}

// HandleVerify handles POST /v1/users/{id}/verify.
func (h *UsersHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.Users.Verify)
}

// HandleUnverify handles POST /v1/users/{id}/unverify.
func (h *UsersHandler) HandleUnverify(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.Users.Unverify)
}

// HandleChangeEmail handles PUT /v1/users/{id}/email
//
//	@Summary	Change a user's email
//	@Tags		Users
//	@Accept		json
//	@Param		id		path	string				true	"User id"
//	@Param		request	body	ChangeEmailRequest	true	"New email"
//	@Success	204
//	@Failure	400	{object}	ErrorResponse	"Malformed email"
//	@Failure	404	{object}	ErrorResponse
//	@Failure	409	{object}	ErrorResponse	"Email already in use"
//	@Router		/v1/users/{id}/email [put].
func (h *UsersHandler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.Users.ChangeEmail(r.Context(), r.PathValue("id"), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePassword handles PUT /v1/users/{id}/password.
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.Users.ChangePassword(r.Context(), r.PathValue("id"), req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssignRole handles POST /v1/users/{id}/roles.
func (h *UsersHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.Users.AssignRole(r.Context(), r.PathValue("id"), req.RoleID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnassignRole handles DELETE /v1/users/{id}/roles/{roleId}.
func (h *UsersHandler) HandleUnassignRole(w http.ResponseWriter, r *http.Request) {
	err := h.Users.UnassignRole(r.Context(), r.PathValue("id"), r.PathValue("roleId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// flip is the shared handler body for the four account state toggles.
func (h *UsersHandler) flip(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	if err := op(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
