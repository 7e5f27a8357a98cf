package handler

import (
	"net/http"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
)

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte("pong"))
}

func (h *Handler) handleListModerations(w http.ResponseWriter, r *http.Request) {
	status := model.ModerationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, apperr.New(apperr.CodeInvalidRequest, "unknown moderation status %q", status))
		return
	}
	mods, err := h.svc.ListModerations(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if mods == nil {
		mods = []model.Moderation{}
	}
	writeJSON(w, http.StatusOK, mods)
}

func (h *Handler) handleGetModeration(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.GetModeration(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type moderateRequest struct {
	Status   model.ModerationStatus `json:"status"`
	Version  int                    `json:"version"`
	Feedback string                 `json:"feedback"`
}

func (h *Handler) handleModerate(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req moderateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.Moderate(r.Context(), id, moderation.Request{
		Target:      req.Status,
		Version:     req.Version,
		ModeratorID: model.UserFromContext(r.Context()),
		Feedback:    req.Feedback,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type maintenanceState struct {
	Maintenance bool `json:"maintenance"`
}

func (h *Handler) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, maintenanceState{Maintenance: h.svc.Maintenance()})
}

func (h *Handler) handleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceState
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.svc.SetMaintenance(req.Maintenance)
	writeJSON(w, http.StatusOK, maintenanceState{Maintenance: h.svc.Maintenance()})
}
