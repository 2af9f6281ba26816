package handler

import (
	"net/http"
	"time"

	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/overwork"
)

// OverworkSubmitRequest 加班申请提交请求
type OverworkSubmitRequest struct {
	StaffID     string  `json:"staff_id"`
	ExtraShifts int     `json:"extra_shifts"`
	ExtraHours  float64 `json:"extra_hours,omitempty"`
	Kind        string  `json:"kind"`                 // temporary/permanent
	ExpiresAt   string  `json:"expires_at,omitempty"` // RFC3339，temporary 必填
	Reason      string  `json:"reason"`
	Urgency     string  `json:"urgency,omitempty"`
}

// SubmitOverwork 提交加班申请
func (h *Handler) SubmitOverwork(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req OverworkSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	staffID, err := parseUUID("staff_id", req.StaffID)
	if err != nil {
		respondError(w, err)
		return
	}

	in := overwork.SubmitInput{
		StaffID:     staffID,
		ExtraShifts: req.ExtraShifts,
		ExtraHours:  req.ExtraHours,
		Kind:        model.OverworkKind(req.Kind),
		Reason:      req.Reason,
		Urgency:     req.Urgency,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			respondError(w, errors.InvalidInput("expires_at", "应为RFC3339格式"))
			return
		}
		in.ExpiresAt = &t
	}

	created, err := h.engine.SubmitOverworkRequest(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// OverworkDecideRequest 加班审批请求
type OverworkDecideRequest struct {
	Approve   bool   `json:"approve"`
	DecidedBy string `json:"decided_by"`
}

// DecideOverwork 审批加班申请
func (h *Handler) DecideOverwork(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	requestID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req OverworkDecideRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	decidedBy, err := parseUUID("decided_by", req.DecidedBy)
	if err != nil {
		respondError(w, err)
		return
	}

	decided, err := h.engine.DecideOverworkRequest(r.Context(), requestID, req.Approve, decidedBy)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.RecordOverworkDecision(string(decided.Status))
	respondJSON(w, http.StatusOK, decided)
}

// GetOverwork 查询加班申请
func (h *Handler) GetOverwork(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	requestID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	req, err := h.engine.GetOverworkRequest(r.Context(), requestID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}
