package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/akozyrev/sciselect/internal/authority"
	"github.com/akozyrev/sciselect/internal/model"
)

// AdminRoutes registers the moderator-only management endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Use(h.requireAuth, requireRole(model.RoleModerator))

	r.Get("/members", h.handleListMembers)
	r.Post("/members", h.handleCreateMember)
	r.Post("/members/{memberID}/toggle-active", h.handleToggleMemberActive)
	r.Put("/members/{memberID}/role", h.handleSetMemberRole)
	r.Post("/members/{memberID}/affiliations", h.handleAssignAffiliation)

	r.Get("/directions", h.handleListDirections)
	r.Post("/directions", h.handleCreateDirection)
	r.Get("/affiliations", h.handleListAffiliations)
	r.Post("/affiliations", h.handleCreateAffiliation)
	r.Post("/work-groups", h.handleCreateWorkGroup)
	r.Post("/competencies", h.handleCreateCompetence)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListMembers()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string     `json:"username"`
		DisplayName string     `json:"display_name"`
		Password    string     `json:"password"`
		Role        model.Role `json:"role"`
		Phone       string     `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "username and password required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if req.Role == "" {
		req.Role = model.RoleOperator
	}

	id, err := h.store.CreateMember(model.Member{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Phone:        req.Phone,
		Active:       true,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	member, err := h.store.GetMemberByID(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleToggleMemberActive(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "memberID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid member ID"})
		return
	}
	if err := h.store.ToggleMemberActive(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "memberID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid member ID"})
		return
	}
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	switch req.Role {
	case model.RoleOperator, model.RoleMaster, model.RoleModerator:
	default:
		respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: "unknown role"})
		return
	}
	if err := h.store.SetMemberRole(id, req.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]model.Role{"role": req.Role})
}

func (h *Handler) handleAssignAffiliation(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "memberID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid member ID"})
		return
	}
	var req affiliationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if err := h.store.AssignAffiliation(id, req.AffiliationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleListDirections(w http.ResponseWriter, r *http.Request) {
	directions, err := h.store.ListDirections()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, directions)
}

func (h *Handler) handleCreateDirection(w http.ResponseWriter, r *http.Request) {
	var d model.Direction
	if err := decodeJSON(r, &d); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if d.Name == "" {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "name required"})
		return
	}
	id, err := h.store.CreateDirection(d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d.ID = id
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleListAffiliations(w http.ResponseWriter, r *http.Request) {
	affiliations, err := h.store.ListAffiliations()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authority.GroupByDirection(affiliations))
}

func (h *Handler) handleCreateAffiliation(w http.ResponseWriter, r *http.Request) {
	var a model.Affiliation
	if err := decodeJSON(r, &a); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	id, err := h.store.CreateAffiliation(a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a.ID = id
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleCreateWorkGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.requireScope(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	var g model.WorkGroup
	if err := decodeJSON(r, &g); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	id, err := h.store.CreateWorkGroup(g)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	g.ID = id
	respondJSON(w, http.StatusCreated, g)
}

func (h *Handler) handleCreateCompetence(w http.ResponseWriter, r *http.Request) {
	if err := h.requireScope(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "name required"})
		return
	}
	id, err := h.store.CreateCompetence(req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, model.Competence{ID: id, Name: req.Name})
}
