// Package handler is the JSON API surface: authentication, application
// management, booking, testing and document export.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akozyrev/sciselect/internal/authority"
	"github.com/akozyrev/sciselect/internal/booking"
	"github.com/akozyrev/sciselect/internal/docs"
	"github.com/akozyrev/sciselect/internal/exam"
	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/score"
	"github.com/akozyrev/sciselect/internal/store"
)

// Config holds the handler-level settings.
type Config struct {
	SecureCookies bool
	DefaultLang   string
	DocumentDir   string
	FontPath      string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	ledger   *booking.Ledger
	assigner *booking.Assigner
	exams    *exam.Service
	docs     *docs.Generator
	renderer docs.Renderer
	calc     *score.Calculator
	config   Config
	now      func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, calc *score.Calculator, cfg Config) *Handler {
	return &Handler{
		store:    s,
		ledger:   booking.NewLedger(s),
		assigner: booking.NewAssigner(s),
		exams:    exam.NewService(s),
		docs:     docs.NewGenerator(s),
		renderer: &docs.PDFRenderer{FontPath: cfg.FontPath},
		calc:     calc,
		config:   cfg,
		now:      time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(appI18n.Middleware(h.config.DefaultLang))

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Route("/applications", func(r chi.Router) {
			r.With(requireRole(model.RoleOperator)).Post("/", h.handleCreateApplication)
			r.With(requireRole(model.RoleMaster, model.RoleModerator)).Get("/", h.handleListApplications)
			r.Get("/mine", h.handleMyApplication)
			r.Get("/rating", h.handleRating)
			r.Route("/{appID}", func(r chi.Router) {
				r.Get("/", h.handleGetApplication)
				r.Put("/", h.handleUpdateApplication)
				r.Delete("/", h.handleDeleteApplication)
				r.Post("/finalize", h.handleFinalizeApplication)
				r.Post("/educations", h.handleAddEducation)
				r.Post("/files", h.handleAddFile)
				r.Delete("/educations/{eduID}", h.handleDeleteEducation)
				r.Put("/directions", h.handleSetDirections)
				r.Put("/competencies", h.handleSetCompetencies)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(model.RoleMaster, model.RoleModerator))
					r.Post("/book", h.handleBook)
					r.Post("/unbook", h.handleUnbook)
					r.Post("/wishlist", h.handleAddWishlist)
					r.Delete("/wishlist", h.handleRemoveWishlist)
					r.Post("/work-group", h.handleAssignWorkGroup)
					r.Delete("/work-group", h.handleRemoveWorkGroup)
				})
			})
		})

		r.Route("/tests", func(r chi.Router) {
			r.Get("/", h.handleListTests)
			r.With(requireRole(model.RoleMaster, model.RoleModerator)).Post("/", h.handleCreateTest)
			r.Route("/{testID}", func(r chi.Router) {
				r.With(requireRole(model.RoleMaster, model.RoleModerator)).Delete("/", h.handleDeleteTest)
				r.With(requireRole(model.RoleMaster, model.RoleModerator)).Post("/questions", h.handleAddQuestion)
				r.With(requireRole(model.RoleOperator)).Post("/start", h.handleStartTest)
				r.With(requireRole(model.RoleOperator)).Post("/submit", h.handleSubmitTest)
				r.With(requireRole(model.RoleMaster, model.RoleModerator)).Get("/results", h.handleTestResults)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleMaster, model.RoleModerator))
			r.Post("/work-groups", h.handleCreateWorkGroup)
			r.Post("/competencies", h.handleCreateCompetence)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Use(requireRole(model.RoleMaster, model.RoleModerator))
			r.Get("/candidates", h.handleDocCandidates)
			r.Get("/rating", h.handleDocRating)
			r.Get("/evaluation/{affID}", h.handleDocEvaluation)
			r.Get("/interview/{appID}", h.handleDocInterview)
			r.Get("/psych-results/{testID}", h.handleDocPsychResults)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

type apiError struct {
	Error string `json:"error"`
}

// writeError maps a service error to a status code and a localized
// message. Unknown errors are logged and reported as internal.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var notOwner *booking.NotOwnerError
	if errors.As(err, &notOwner) {
		respondJSON(w, http.StatusConflict, apiError{
			Error: appI18n.Td(ctx, "BookedByOther", map[string]any{"Booker": notOwner.Booker}),
		})
		return
	}

	var status int
	var msgID string
	switch {
	case errors.Is(err, booking.ErrNotAuthorized):
		status, msgID = http.StatusForbidden, "NotAuthorized"
	case errors.Is(err, booking.ErrInvalidDirection):
		status, msgID = http.StatusUnprocessableEntity, "InvalidDirection"
	case errors.Is(err, booking.ErrAlreadyBooked):
		status, msgID = http.StatusConflict, "AlreadyBooked"
	case errors.Is(err, booking.ErrBookingNotFound):
		status, msgID = http.StatusNotFound, "BookingNotFound"
	case errors.Is(err, booking.ErrNotBookedHere):
		status, msgID = http.StatusUnprocessableEntity, "NotBookedHere"
	case errors.Is(err, authority.ErrNoAffiliations):
		status, msgID = http.StatusForbidden, "NoAffiliations"
	case errors.Is(err, store.ErrApplicationExists):
		status, msgID = http.StatusConflict, "ApplicationExists"
	case errors.Is(err, exam.ErrTestNotFound):
		status, msgID = http.StatusNotFound, "TestNotFound"
	case errors.Is(err, exam.ErrSessionFinished):
		status, msgID = http.StatusConflict, "TestSessionFinished"
	case errors.Is(err, exam.ErrSessionExpired):
		status, msgID = http.StatusConflict, "TestSessionExpired"
	case errors.Is(err, exam.ErrSessionNotStarted):
		status, msgID = http.StatusConflict, "TestSessionNotStarted"
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, status, apiError{Error: appI18n.T(ctx, msgID)})
}
