package handler

import (
	"net/http"
	"path/filepath"

	"github.com/akozyrev/sciselect/internal/docs"
	"github.com/akozyrev/sciselect/internal/model"
)

// serveDocument renders the document to the export directory and streams
// the PDF back.
func (h *Handler) serveDocument(w http.ResponseWriter, r *http.Request, doc *docs.Document, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path, err := docs.Save(doc, h.renderer, h.config.DocumentDir)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) handleDocCandidates(w http.ResponseWriter, r *http.Request) {
	member := model.MemberFromContext(r.Context())
	directions, err := h.masterScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.docs.Candidates(r.Context(), member.ID, directions)
	h.serveDocument(w, r, doc, err)
}

func (h *Handler) handleDocRating(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Rating(r.Context())
	h.serveDocument(w, r, doc, err)
}

func (h *Handler) handleDocEvaluation(w http.ResponseWriter, r *http.Request) {
	affID, err := urlID(r, "affID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid affiliation ID"})
		return
	}
	doc, err := h.docs.Evaluation(r.Context(), affID)
	h.serveDocument(w, r, doc, err)
}

func (h *Handler) handleDocInterview(w http.ResponseWriter, r *http.Request) {
	appID, err := urlID(r, "appID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid application ID"})
		return
	}
	doc, err := h.docs.Interview(r.Context(), appID)
	h.serveDocument(w, r, doc, err)
}

func (h *Handler) handleDocPsychResults(w http.ResponseWriter, r *http.Request) {
	testID, err := urlID(r, "testID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid test ID"})
		return
	}
	doc, err := h.docs.PsychResults(r.Context(), testID)
	h.serveDocument(w, r, doc, err)
}
