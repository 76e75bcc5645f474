package http

import (
	"encoding/json"
	"net/http"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/pkg/httpx"
)

// RolesHandler handles the role catalogue endpoints.
type RolesHandler struct {
	Roles *service.RoleService
}

// HandleCreate handles POST /v1/roles
//
//	@Summary	Create a role
//	@Tags		Roles
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateRoleRequest	true	"Role"
//	@Success	201		{object}	RoleResponse
//	@Failure	400		{object}	ErrorResponse	"Invalid role name"
//	@Failure	409		{object}	ErrorResponse	"Role name already in use"
//	@Router		/v1/roles [post].
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	role, err := h.Roles.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toRoleResponse(role))
}

// HandleList handles GET /v1/roles.
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Roles.ListRoles(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/roles/{id}.
func (h *RolesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	role, err := h.Roles.GetRoleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRoleResponse(role))
}

func toRoleResponse(role domain.Role) RoleResponse {
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}
