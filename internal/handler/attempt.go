package handler

import (
	"net/http"

	"github.com/pavelanni/certexam/internal/model"
)

// handleSubmit grades an attempt on behalf of the requester. The user in the
// body is ignored.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var a model.ExamAttempt
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	a.UserID = model.UserFromContext(r.Context())

	score, err := h.svc.Submit(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.ExportAttempts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
