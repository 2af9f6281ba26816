package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/pkg/calendar"
	"github.com/yipai/yipai/pkg/engine"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	LocationID  string                `json:"location_id"`
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Multipliers *calendar.Multipliers `json:"multipliers,omitempty"`
	Options     *GenerateOptions      `json:"options,omitempty"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Timeout int `json:"timeout_seconds,omitempty"`
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Success bool   `json:"success"`
	Partial bool   `json:"partial,omitempty"` // 是否存在缺员槽位
	Message string `json:"message,omitempty"`
	*engine.GenerateResult
	Duration string `json:"duration"`
}

// Generate 生成排班
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	locationID, err := parseUUID("location_id", req.LocationID)
	if err != nil {
		respondError(w, err)
		return
	}
	dr := model.DateRange{StartDate: req.StartDate, EndDate: req.EndDate}
	if err := dr.Validate(); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的日期范围"))
		return
	}

	timeout := 30 * time.Second
	if req.Options != nil && req.Options.Timeout > 0 {
		timeout = time.Duration(req.Options.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	start := time.Now()
	result, err := h.engine.GenerateSchedule(ctx, engine.GenerateRequest{
		LocationID:  locationID,
		Range:       dr,
		Multipliers: req.Multipliers,
	})
	duration := time.Since(start)
	metrics.RecordScheduleGeneration(req.LocationID, err == nil, duration)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			respondError(w, errors.New(errors.CodeTimeout, "排班计算超时，请缩短排班周期后重试"))
			return
		}
		respondError(w, err)
		return
	}

	if result.Report != nil {
		metrics.SetCoverageRate(req.LocationID, result.Report.FillRate)
		metrics.SetWorkloadGini(req.LocationID, "shift_count", result.Report.ShiftCountGini)
		metrics.SetWorkloadGini(req.LocationID, "night_shift", result.Report.NightShiftGini)
	}

	resp := GenerateResponse{
		Success:        true,
		Partial:        len(result.Conflicts) > 0,
		GenerateResult: result,
		Duration:       duration.String(),
	}
	if resp.Partial {
		resp.Message = "部分槽位缺员，详见 conflicts"
	}
	respondJSON(w, http.StatusOK, resp)
}

// ClearRequest 清除排班请求
type ClearRequest struct {
	LocationID string `json:"location_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// Clear 清除一个日期范围的排班并释放工作量
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ClearRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	locationID, err := parseUUID("location_id", req.LocationID)
	if err != nil {
		respondError(w, err)
		return
	}

	deleted, err := h.engine.ClearRange(r.Context(), locationID, model.DateRange{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
	})
}

// AssignRequest 手工指派请求
type AssignRequest struct {
	StaffID string `json:"staff_id"`
}

// Assign 手工把员工指派到槽位
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	slotID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	staffID, err := parseUUID("staff_id", req.StaffID)
	if err != nil {
		respondError(w, err)
		return
	}

	slot, err := h.engine.Assign(r.Context(), slotID, staffID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

// Unassign 从槽位撤下员工
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	slotID, err := pathID(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	staffID, err := parseUUID("staff_id", req.StaffID)
	if err != nil {
		respondError(w, err)
		return
	}

	slot, err := h.engine.Unassign(r.Context(), slotID, staffID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

// Report 工作量分布报告
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	locationID, err := parseUUID("location_id", q.Get("location_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	dr := model.DateRange{StartDate: q.Get("start_date"), EndDate: q.Get("end_date")}

	report, err := h.engine.Report(r.Context(), locationID, dr)
	if err != nil {
		respondError(w, err)
		return
	}

	metrics.SetCoverageRate(locationID.String(), report.FillRate)
	metrics.SetWorkloadGini(locationID.String(), "shift_count", report.ShiftCountGini)
	metrics.SetWorkloadGini(locationID.String(), "hours", report.HoursGini)
	respondJSON(w, http.StatusOK, report)
}
