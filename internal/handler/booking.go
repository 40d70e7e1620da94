package handler

import (
	"net/http"

	"github.com/akozyrev/sciselect/internal/model"
)

type affiliationRequest struct {
	AffiliationID int64 `json:"affiliation_id"`
}

type wishlistRequest struct {
	AffiliationIDs []int64 `json:"affiliation_ids"`
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req affiliationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.ledger.Book(member, app, req.AffiliationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"affiliation_id": req.AffiliationID})
}

func (h *Handler) handleUnbook(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req affiliationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.ledger.Unbook(member, app, req.AffiliationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleAddWishlist(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req wishlistRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.ledger.AddToWishlist(member, app, req.AffiliationIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, req.AffiliationIDs)
}

func (h *Handler) handleRemoveWishlist(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req wishlistRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.ledger.RemoveFromWishlist(member, app, req.AffiliationIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleAssignWorkGroup(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req struct {
		WorkGroupID int64 `json:"work_group_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.assigner.Assign(member, app, req.WorkGroupID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"work_group_id": req.WorkGroupID})
}

func (h *Handler) handleRemoveWorkGroup(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	member := model.MemberFromContext(r.Context())
	if err := h.assigner.Remove(member, app); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
