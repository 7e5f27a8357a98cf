package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appI18n "github.com/pavelanni/certexam/internal/i18n"
	"github.com/pavelanni/certexam/internal/model"
)

// UserHeader carries the requester identity set by the authenticating proxy.
const UserHeader = "X-User-ID"

// RoleHeader carries the requester role set by the authenticating proxy.
const RoleHeader = "X-User-Role"

// Requester roles understood by requireRole.
const (
	RoleExaminee = "examinee"
	RoleCreator  = "creator"
)

// requireUser rejects requests without a requester identity and stores it
// in the request context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:  "Unauthorized",
				Error: appI18n.T(r.Context(), "ErrMissingUser", nil),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), user)))
	})
}

// requireRole returns middleware that admits only requesters whose role
// header names one of the allowed roles.
func requireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := r.Header.Get(RoleHeader)
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("role refused", "method", r.Method, "path", r.URL.Path,
				"user", model.UserFromContext(r.Context()), "role", role)
			writeJSON(w, http.StatusForbidden, errorResponse{
				Code:  "Forbidden",
				Error: appI18n.T(r.Context(), "ErrForbidden", nil),
			})
		})
	}
}

// RequestID fills in a UUID request ID when the caller sent none, so that
// middleware.RequestID propagates it instead of generating its own.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
