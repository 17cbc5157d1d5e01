package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

type complaintRequest struct {
	TargetID    string `json:"targetId"`
	OrderID     string `json:"orderId"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type resolveRequest struct {
	Upheld bool `json:"upheld"`
}

// FileComplaint регистрирует жалобу или благодарность.
func (h *Handler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req complaintRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	c, err := h.service.FileComplaint(r.Context(), sess, service.ComplaintRequest{
		TargetID:    req.TargetID,
		OrderID:     req.OrderID,
		Kind:        model.FeedbackKind(req.Kind),
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, "file complaint", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toComplaint(c))
}

// GetComplaints возвращает обращения в указанном статусе, по умолчанию открытые.
func (h *Handler) GetComplaints(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	status := model.ComplaintStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = model.ComplaintStatusOpen
	case model.ComplaintStatusOpen, model.ComplaintStatusUpheld, model.ComplaintStatusDismissed:
	default:
		badRequest(w)
		return
	}

	complaints, err := h.service.Complaints(r.Context(), sess, status)
	if err != nil {
		h.writeError(w, r, "get complaints", err)
		return
	}

	if len(complaints) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]complaintResponse, 0, len(complaints))
	for i := range complaints {
		resp = append(resp, toComplaint(&complaints[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ResolveComplaint фиксирует решение менеджера по обращению.
func (h *Handler) ResolveComplaint(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	c, err := h.service.ResolveComplaint(r.Context(), sess, chi.URLParam(r, "complaintID"), req.Upheld)
	if err != nil {
		h.writeError(w, r, "resolve complaint", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaint(c))
}
