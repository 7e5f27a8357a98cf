// Package handler serves the exam engine as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	appI18n "github.com/pavelanni/certexam/internal/i18n"
	"github.com/pavelanni/certexam/internal/service"
)

const maxBodyBytes = 4 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc *service.Service
}

// New creates a new Handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status/ping", h.handlePing)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/exams/{examID}/generate", h.handleGenerate)
		r.Post("/attempts", h.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(RoleCreator))

			r.Get("/exams", h.handleListExams)
			r.Post("/exams", h.handleCreateExam)
			r.Get("/exams/{examID}", h.handleGetExam)
			r.Put("/exams/{examID}", h.handleUpdateExam)
			r.Post("/generations", h.handleGenerateBatch)

			r.Get("/attempts/export", h.handleExport)

			r.Get("/moderations", h.handleListModerations)
			r.Get("/moderations/{examID}", h.handleGetModeration)
			r.Put("/moderations/{examID}", h.handleModerate)

			r.Get("/state/maintenance", h.handleGetMaintenance)
			r.Post("/state/maintenance", h.handleSetMaintenance)
		})
	})
}

type errorResponse struct {
	Code             apperr.Code `json:"code"`
	Error            string      `json:"error"`
	EarliestEligible *time.Time  `json:"earliestEligible,omitempty"`
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeConfigInvalid, apperr.CodeInsufficientPool, apperr.CodeInsufficientAnswers, apperr.CodeExpired:
		return http.StatusUnprocessableEntity
	case apperr.CodeUnknownReference, apperr.CodeInvalidRequest:
		return http.StatusBadRequest
	case apperr.CodeRetakeTooSoon, apperr.CodeTransitionRejected, apperr.CodeDuplicateAttempt:
		return http.StatusConflict
	case apperr.CodeTemplateNotApproved, apperr.CodeTemplateDeprecated:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeMaintenance:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps classified errors to their status and a localized message.
// Unclassified errors are logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	resp := errorResponse{Code: code}

	if code == "" {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = appI18n.T(r.Context(), "ErrInternal", nil)
		writeJSON(w, status, resp)
		return
	}

	var data map[string]any
	if t, ok := apperr.EarliestEligible(err); ok {
		t = t.UTC()
		resp.EarliestEligible = &t
		data = map[string]any{"EarliestEligible": t.Format(time.RFC3339)}
	}
	resp.Error = appI18n.T(r.Context(), "Err"+string(code), data)
	slog.Warn("request refused", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.New(apperr.CodeInvalidRequest, "request body exceeds %d bytes", maxErr.Limit)
		}
		return apperr.Wrap(apperr.CodeInvalidRequest, err, "decode request body")
	}
	return nil
}

func objectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Wrap(apperr.CodeInvalidRequest, err, fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}
