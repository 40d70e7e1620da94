package handler

import (
	"net/http"

	"github.com/akozyrev/sciselect/internal/authority"
	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
)

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	member := model.MemberFromContext(r.Context())

	var app model.Application
	if err := decodeJSON(r, &app); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	app.MemberID = member.ID

	if app.DraftYear == 0 {
		app.DraftYear, app.DraftSeason = model.CurrentDraftCycle(h.now())
	}
	if msg := h.checkDraftCycle(app.DraftYear, app.DraftSeason); msg != "" {
		respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: msg})
		return
	}

	id, err := h.store.CreateApplication(app)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.store.GetApplication(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// checkDraftCycle rejects draft cycles in the past or with an unknown
// season; empty string means the cycle is acceptable.
func (h *Handler) checkDraftCycle(year int, season model.DraftSeason) string {
	curYear, curSeason := model.CurrentDraftCycle(h.now())
	if year < curYear || (year == curYear && season < curSeason) {
		return "draft cycle is in the past"
	}
	if season != model.SeasonSpring && season != model.SeasonAutumn {
		return "unknown draft season"
	}
	return ""
}

// loadApplication fetches the application and checks access: candidates
// see only their own, masters and moderators see all. Returns nil after
// writing the response on failure.
func (h *Handler) loadApplication(w http.ResponseWriter, r *http.Request) *model.Application {
	id, err := urlID(r, "appID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid application ID"})
		return nil
	}
	app, err := h.store.GetApplication(id)
	if err != nil {
		h.writeError(w, r, err)
		return nil
	}
	if app == nil {
		respondJSON(w, http.StatusNotFound, apiError{Error: appI18n.T(r.Context(), "ApplicationNotFound")})
		return nil
	}
	member := model.MemberFromContext(r.Context())
	if member.IsOperator() && app.MemberID != member.ID {
		respondJSON(w, http.StatusForbidden, apiError{Error: "forbidden"})
		return nil
	}
	return app
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	educations, err := h.store.ListEducations(app.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	directions, err := h.store.ApplicationDirections(app.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	scores, err := h.store.GetScores(app.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"application": app,
		"educations":  educations,
		"directions":  directions,
		"scores":      scores,
	})
}

func (h *Handler) handleMyApplication(w http.ResponseWriter, r *http.Request) {
	member := model.MemberFromContext(r.Context())
	app, err := h.store.GetApplicationByMember(member.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if app == nil {
		respondJSON(w, http.StatusNotFound, apiError{Error: appI18n.T(r.Context(), "ApplicationNotFound")})
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func (h *Handler) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	member := model.MemberFromContext(r.Context())
	if app.IsFinal && !member.IsModerator() {
		respondJSON(w, http.StatusConflict, apiError{Error: appI18n.T(r.Context(), "ApplicationFinal")})
		return
	}

	var update model.Application
	if err := decodeJSON(r, &update); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	update.ID = app.ID
	update.MemberID = app.MemberID
	if update.DraftYear == 0 {
		update.DraftYear, update.DraftSeason = app.DraftYear, app.DraftSeason
	}
	if msg := h.checkDraftCycle(update.DraftYear, update.DraftSeason); msg != "" {
		respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: msg})
		return
	}
	if err := h.store.UpdateApplication(&update); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.store.GetApplication(app.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	member := model.MemberFromContext(r.Context())
	if member.IsMaster() {
		respondJSON(w, http.StatusForbidden, apiError{Error: "forbidden"})
		return
	}
	if app.IsFinal && !member.IsModerator() {
		respondJSON(w, http.StatusConflict, apiError{Error: appI18n.T(r.Context(), "ApplicationFinal")})
		return
	}
	if err := h.store.DeleteApplication(app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleFinalizeApplication(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req struct {
		Final bool `json:"final"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	// Candidates may only lock their application, unlocking needs staff.
	if member.IsOperator() && !req.Final {
		respondJSON(w, http.StatusForbidden, apiError{Error: "forbidden"})
		return
	}
	if err := h.store.SetApplicationFinal(app.ID, req.Final); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_final": req.Final})
}

func (h *Handler) handleAddEducation(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var edu model.Education
	if err := decodeJSON(r, &edu); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if !h.calc.ValidAvgScore(edu.AvgScore) {
		respondJSON(w, http.StatusUnprocessableEntity, apiError{
			Error: appI18n.Td(r.Context(), "InvalidAvgScore", map[string]any{
				"Min": h.calc.MinAvgScore(), "Max": h.calc.MaxAvgScore(),
			}),
		})
		return
	}
	edu.ApplicationID = app.ID
	if _, err := h.store.AddEducation(edu); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	educations, err := h.store.ListEducations(app.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, educations)
}

func (h *Handler) handleDeleteEducation(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	eduID, err := urlID(r, "eduID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid education ID"})
		return
	}
	if err := h.store.DeleteEducation(eduID, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleSetDirections(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req struct {
		DirectionIDs []int64 `json:"direction_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if err := h.store.SetApplicationDirections(app.ID, req.DirectionIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req.DirectionIDs)
}

func (h *Handler) handleSetCompetencies(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req struct {
		Competencies []model.ApplicationCompetence `json:"competencies"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if err := h.store.SetApplicationCompetencies(app.ID, req.Competencies); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req.Competencies)
}

func (h *Handler) handleAddFile(w http.ResponseWriter, r *http.Request) {
	app := h.loadApplication(w, r)
	if app == nil {
		return
	}
	var req struct {
		FileName string `json:"file_name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.FileName == "" {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "file name is required"})
		return
	}
	id, err := h.store.AddFile(model.File{MemberID: app.MemberID, FileName: req.FileName})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Attachments count toward application fullness.
	if err := h.store.UpdateScores(h.calc, app.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// requireScope guards scoped create operations: a master with zero
// affiliations cannot create tests, work groups or competencies.
// Moderators pass unconditionally.
func (h *Handler) requireScope(r *http.Request) error {
	member := model.MemberFromContext(r.Context())
	if !member.IsMaster() {
		return nil
	}
	affiliations, err := h.store.MemberAffiliations(member.ID)
	if err != nil {
		return err
	}
	return authority.RequireAffiliations(affiliations)
}

// masterScope resolves the caller's visible directions: moderators see
// everything, masters see the directions behind their affiliations.
func (h *Handler) masterScope(r *http.Request) ([]int64, error) {
	member := model.MemberFromContext(r.Context())
	if member.IsModerator() {
		return nil, nil
	}
	affiliations, err := h.store.MemberAffiliations(member.ID)
	if err != nil {
		return nil, err
	}
	if err := authority.RequireAffiliations(affiliations); err != nil {
		return nil, err
	}
	return authority.MasterDirections(affiliations), nil
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	member := model.MemberFromContext(r.Context())
	directions, err := h.masterScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.store.ListApplications(member.ID, directions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleRating(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.RatingList()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
