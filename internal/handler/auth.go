package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
)

const sessionCookieName = "session"

// requireAuth is middleware that checks for a valid session cookie and
// loads the acting member into the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
			return
		}
		if authSess == nil {
			respondJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
			return
		}

		member, err := h.store.GetMemberByID(authSess.MemberID)
		if err != nil || member == nil || !member.Active {
			respondJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
			return
		}

		ctx := model.ContextWithMember(r.Context(), member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the member has one of the
// allowed roles.
func requireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := model.MemberFromContext(r.Context())
			if member == nil {
				respondJSON(w, http.StatusUnauthorized, apiError{Error: "unauthorized"})
				return
			}
			for _, role := range allowed {
				if member.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondJSON(w, http.StatusForbidden, apiError{Error: "forbidden"})
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}

	member, err := h.store.GetMemberByUsername(req.Username)
	if err != nil {
		slog.Error("failed to get member", "error", err)
		h.loginError(w, r)
		return
	}
	if member == nil || !member.Active {
		h.loginError(w, r)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)); err != nil {
		h.loginError(w, r)
		return
	}

	token, err := h.store.CreateAuthSession(member.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, http.StatusOK, member)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) loginError(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusUnauthorized, apiError{Error: appI18n.T(r.Context(), "LoginError")})
}
