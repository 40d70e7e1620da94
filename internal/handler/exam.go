package handler

import (
	"net/http"

	"github.com/akozyrev/sciselect/internal/authority"
	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
)

// visibleDirections resolves which directions scope the caller's test
// list: a candidate sees tests for the directions they chose, a master
// the directions of their affiliations, a moderator everything.
func (h *Handler) visibleDirections(r *http.Request) ([]int64, bool, error) {
	member := model.MemberFromContext(r.Context())
	switch {
	case member.IsModerator():
		directions, err := h.store.ListDirections()
		if err != nil {
			return nil, false, err
		}
		ids := make([]int64, len(directions))
		for i, d := range directions {
			ids[i] = d.ID
		}
		return ids, true, nil
	case member.IsMaster():
		affiliations, err := h.store.MemberAffiliations(member.ID)
		if err != nil {
			return nil, false, err
		}
		return authority.MasterDirections(affiliations), true, nil
	default:
		app, err := h.store.GetApplicationByMember(member.ID)
		if err != nil {
			return nil, false, err
		}
		if app == nil {
			return nil, false, nil
		}
		ids, err := h.store.ApplicationDirections(app.ID)
		return ids, true, err
	}
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	directions, ok, err := h.visibleDirections(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, []model.Test{})
		return
	}
	tests, err := h.store.ListTestsByDirections(directions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tests == nil {
		tests = []model.Test{}
	}
	respondJSON(w, http.StatusOK, tests)
}

func (h *Handler) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	if err := h.requireScope(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	member := model.MemberFromContext(r.Context())
	var req struct {
		model.Test
		DirectionIDs []int64 `json:"direction_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if req.TimeLimit <= 0 {
		respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: "time limit must be positive"})
		return
	}
	if req.Type == "" {
		req.Type = model.TestOrdinary
	}
	req.CreatorID = member.ID

	id, err := h.store.CreateTest(req.Test, req.DirectionIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.store.GetTest(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// loadOwnTest fetches a test and checks the caller created it. Tests are
// editable only by their creator.
func (h *Handler) loadOwnTest(w http.ResponseWriter, r *http.Request) *model.Test {
	id, err := urlID(r, "testID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid test ID"})
		return nil
	}
	test, err := h.store.GetTest(id)
	if err != nil {
		h.writeError(w, r, err)
		return nil
	}
	if test == nil {
		respondJSON(w, http.StatusNotFound, apiError{Error: appI18n.T(r.Context(), "TestNotFound")})
		return nil
	}
	member := model.MemberFromContext(r.Context())
	if test.CreatorID != member.ID {
		respondJSON(w, http.StatusForbidden, apiError{Error: appI18n.T(r.Context(), "TestNotCreator")})
		return nil
	}
	return test
}

func (h *Handler) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	test := h.loadOwnTest(w, r)
	if test == nil {
		return
	}
	if err := h.store.DeleteTest(test.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	test := h.loadOwnTest(w, r)
	if test == nil {
		return
	}
	var req struct {
		Wording    string             `json:"wording"`
		Type       model.QuestionType `json:"question_type"`
		Answers    []string           `json:"answers"`
		CorrectIdx []int              `json:"correct_idx"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if len(req.Answers) == 0 {
		respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: "a question needs answer options"})
		return
	}
	for _, idx := range req.CorrectIdx {
		if idx < 0 || idx >= len(req.Answers) {
			respondJSON(w, http.StatusUnprocessableEntity, apiError{Error: "correct answer index out of range"})
			return
		}
	}
	id, err := h.store.AddQuestion(model.Question{
		TestID:  test.ID,
		Wording: req.Wording,
		Type:    req.Type,
	}, req.Answers, req.CorrectIdx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleStartTest(w http.ResponseWriter, r *http.Request) {
	testID, err := urlID(r, "testID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid test ID"})
		return
	}
	member := model.MemberFromContext(r.Context())
	session, err := h.exams.StartOrResume(testID, member.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"result":            session.Result,
		"questions":         session.Questions,
		"answers":           session.Answers,
		"remaining_seconds": int(session.Remaining.Seconds()),
	})
}

func (h *Handler) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	testID, err := urlID(r, "testID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid test ID"})
		return
	}
	var req struct {
		Answers map[int64][]int64 `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	member := model.MemberFromContext(r.Context())
	result, err := h.exams.Submit(testID, member.ID, req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTestResults(w http.ResponseWriter, r *http.Request) {
	testID, err := urlID(r, "testID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid test ID"})
		return
	}
	results, err := h.store.TestResultsForTest(testID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []model.TestResult{}
	}
	respondJSON(w, http.StatusOK, results)
}
