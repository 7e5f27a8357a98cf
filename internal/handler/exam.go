package handler

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	appI18n "github.com/pavelanni/certexam/internal/i18n"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/service"
)

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	templates, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []model.ExamTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var t model.ExamTemplate
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.CreateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var t model.ExamTemplate
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	updated, err := h.svc.UpdateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	exam, err := h.svc.Generate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

type batchRequest struct {
	ExamIDs     []primitive.ObjectID `json:"examIds"`
	Count       int                  `json:"count"`
	Concurrency int                  `json:"concurrency"`
}

type batchResponse struct {
	Summary string                `json:"summary"`
	Results []service.BatchResult `json:"results"`
}

func (h *Handler) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Concurrency == 0 {
		req.Concurrency = 4
	}
	results, err := h.svc.GenerateBatch(r.Context(), req.ExamIDs, req.Count, req.Concurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	completed := 0
	for _, res := range results {
		completed += res.Completed
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Summary: appI18n.Tp(r.Context(), "BatchSummary", completed),
		Results: results,
	})
}
