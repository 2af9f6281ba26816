package handler

import (
	"net/http"

	"github.com/yipai/yipai/internal/metrics"
)

// SwapCandidates 查询换班候选人
// 查询参数: requester_id 必填, target_date 可选（换到另一天时传入）
func (h *Handler) SwapCandidates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	slotID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	q := r.URL.Query()
	requesterID, err := parseUUID("requester_id", q.Get("requester_id"))
	if err != nil {
		respondError(w, err)
		return
	}

	candidates, err := h.engine.FindSwapPartners(r.Context(), slotID, requesterID, q.Get("target_date"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"slot_id":    slotID.String(),
		"candidates": candidates,
		"total":      len(candidates),
	})
}

// SwapCommitRequest 换班提交请求
type SwapCommitRequest struct {
	FromStaffID     string `json:"from_staff_id"`
	ToStaffID       string `json:"to_staff_id"`
	ExpectedVersion int    `json:"expected_version,omitempty"` // >0 时启用乐观锁校验
}

// CommitSwap 提交换班
func (h *Handler) CommitSwap(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	slotID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req SwapCommitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	fromID, err := parseUUID("from_staff_id", req.FromStaffID)
	if err != nil {
		respondError(w, err)
		return
	}
	toID, err := parseUUID("to_staff_id", req.ToStaffID)
	if err != nil {
		respondError(w, err)
		return
	}

	slot, err := h.engine.CommitSwap(r.Context(), slotID, fromID, toID, req.ExpectedVersion)
	metrics.RecordSwapCommit(err == nil)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}
