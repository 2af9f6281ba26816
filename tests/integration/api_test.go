// Package integration 提供HTTP接口集成测试
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/handler"
	"github.com/yipai/yipai/pkg/engine"
	"github.com/yipai/yipai/pkg/model"
)

// ---- 内存存储 ----

type slotStore struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.ShiftSlot
}

func (s *slotStore) GetByID(_ context.Context, id uuid.UUID) (*model.ShiftSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id], nil
}

func (s *slotStore) ListRange(_ context.Context, locationID uuid.UUID, dr model.DateRange) ([]*model.ShiftSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ShiftSlot
	for _, slot := range s.slots {
		if slot.LocationID == locationID && dr.Contains(slot.Date) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *slotStore) ReplaceRange(_ context.Context, locationID uuid.UUID, dr model.DateRange, slots []*model.ShiftSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, slot := range s.slots {
		if slot.LocationID == locationID && dr.Contains(slot.Date) {
			delete(s.slots, id)
		}
	}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	return nil
}

func (s *slotStore) Update(_ context.Context, slot *model.ShiftSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot.Version++
	s.slots[slot.ID] = slot
	return nil
}

func (s *slotStore) DeleteRange(_ context.Context, locationID uuid.UUID, dr model.DateRange) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, slot := range s.slots {
		if slot.LocationID == locationID && dr.Contains(slot.Date) {
			delete(s.slots, id)
			n++
		}
	}
	return n, nil
}

type staffStore struct {
	staff []*model.StaffProfile
}

func (s *staffStore) GetByID(_ context.Context, id uuid.UUID) (*model.StaffProfile, error) {
	for _, p := range s.staff {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *staffStore) ListActive(_ context.Context, locationID uuid.UUID) ([]*model.StaffProfile, error) {
	var out []*model.StaffProfile
	for _, p := range s.staff {
		if p.IsActive() && p.WorksAt(locationID) {
			out = append(out, p)
		}
	}
	return out, nil
}

type locationStore struct {
	locations map[uuid.UUID]*model.Location
}

func (s *locationStore) GetByID(_ context.Context, id uuid.UUID) (*model.Location, error) {
	return s.locations[id], nil
}

// ---- 测试服务器 ----

func testServer(t *testing.T) (*httptest.Server, *model.Location) {
	t.Helper()

	loc := &model.Location{BaseModel: model.NewBaseModel(), Name: "内科", Code: "PD-01"}
	loc.Configs = []*model.ShiftTypeConfig{
		{
			BaseModel:  model.NewBaseModel(),
			LocationID: loc.ID,
			Name:       "全周",
			Definitions: []*model.ShiftDefinition{
				{Name: "PAGI", StartTime: "07:00", EndTime: "14:00", Headcount: map[model.Role]int{model.RolePerawat: 2}},
				{Name: "SIANG", StartTime: "14:00", EndTime: "21:00", Headcount: map[model.Role]int{model.RolePerawat: 2}},
			},
		},
	}

	staff := make([]*model.StaffProfile, 8)
	for i := range staff {
		staff[i] = &model.StaffProfile{
			BaseModel: model.NewBaseModel(),
			Name:      fmt.Sprintf("护士-%02d", i+1),
			Role:      model.RolePerawat,
			Status:    "active",
		}
	}

	eng, err := engine.New(engine.Options{
		Slots:     &slotStore{slots: make(map[uuid.UUID]*model.ShiftSlot)},
		Staff:     &staffStore{staff: staff},
		Locations: &locationStore{locations: map[uuid.UUID]*model.Location{loc.ID: loc}},
	})
	if err != nil {
		t.Fatalf("装配引擎失败: %v", err)
	}

	h := handler.New(eng)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/schedule/generate", h.Generate)
	mux.HandleFunc("/api/v1/schedule/clear", h.Clear)
	mux.HandleFunc("/api/v1/schedule/report", h.Report)
	mux.HandleFunc("/api/v1/slots/{id}/assign", h.Assign)
	mux.HandleFunc("/api/v1/slots/{id}/unassign", h.Unassign)
	mux.HandleFunc("/api/v1/slots/{id}/swap-candidates", h.SwapCandidates)
	mux.HandleFunc("/api/v1/slots/{id}/swap", h.CommitSwap)
	mux.HandleFunc("/api/v1/overwork", h.SubmitOverwork)
	mux.HandleFunc("/api/v1/overwork/{id}", h.GetOverwork)
	mux.HandleFunc("/api/v1/overwork/{id}/decide", h.DecideOverwork)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, loc
}

func postJSON(t *testing.T, url string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("序列化请求失败: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return resp, parsed
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return resp, parsed
}

// ---- 测试 ----

func TestGenerateAPI(t *testing.T) {
	srv, loc := testServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/schedule/generate", map[string]interface{}{
		"location_id": loc.ID.String(),
		"start_date":  "2025-09-01",
		"end_date":    "2025-09-07",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200, body=%v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Errorf("success = %v, 期望 true", body["success"])
	}

	stats, ok := body["statistics"].(map[string]interface{})
	if !ok {
		t.Fatalf("响应缺少 statistics: %v", body)
	}
	// 7 天 × 2 班次
	if stats["total_slots"].(float64) != 14 {
		t.Errorf("total_slots = %v, 期望 14", stats["total_slots"])
	}
	if stats["total_assignments"].(float64) != 28 {
		t.Errorf("total_assignments = %v, 期望 28", stats["total_assignments"])
	}
}

func TestGenerateAPIValidation(t *testing.T) {
	srv, loc := testServer(t)

	cases := []struct {
		name    string
		payload map[string]interface{}
		status  int
		code    string
	}{
		{
			name:    "缺少科室ID",
			payload: map[string]interface{}{"start_date": "2025-09-01", "end_date": "2025-09-07"},
			status:  http.StatusBadRequest,
			code:    "INVALID_INPUT",
		},
		{
			name: "日期倒序",
			payload: map[string]interface{}{
				"location_id": loc.ID.String(), "start_date": "2025-09-07", "end_date": "2025-09-01",
			},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name: "未知科室",
			payload: map[string]interface{}{
				"location_id": uuid.New().String(), "start_date": "2025-09-01", "end_date": "2025-09-07",
			},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postJSON(t, srv.URL+"/api/v1/schedule/generate", tc.payload)
			if resp.StatusCode != tc.status {
				t.Errorf("状态码 = %d, 期望 %d", resp.StatusCode, tc.status)
			}
			if body["code"] != tc.code {
				t.Errorf("code = %v, 期望 %s", body["code"], tc.code)
			}
		})
	}
}

func TestSwapAPI(t *testing.T) {
	srv, loc := testServer(t)

	postJSON(t, srv.URL+"/api/v1/schedule/generate", map[string]interface{}{
		"location_id": loc.ID.String(),
		"start_date":  "2025-09-01",
		"end_date":    "2025-09-01",
	})

	// 从报告确认排班存在后，取一个槽位做换班
	resp, report := getJSON(t, srv.URL+"/api/v1/schedule/report?location_id="+loc.ID.String()+
		"&start_date=2025-09-01&end_date=2025-09-01")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("报告状态码 = %d, body=%v", resp.StatusCode, report)
	}
	if report["fill_rate"].(float64) != 1 {
		t.Fatalf("fill_rate = %v, 期望 1", report["fill_rate"])
	}

	// 重新生成单日排班拿到槽位与持有人
	resp, body := postJSON(t, srv.URL+"/api/v1/schedule/generate", map[string]interface{}{
		"location_id": loc.ID.String(),
		"start_date":  "2025-09-01",
		"end_date":    "2025-09-01",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("生成状态码 = %d", resp.StatusCode)
	}
	slots := body["slots"].([]interface{})
	slot := slots[0].(map[string]interface{})
	slotID := slot["id"].(string)
	holder := slot["assigned"].([]interface{})[0].(map[string]interface{})["staff_id"].(string)

	resp, candidates := getJSON(t, srv.URL+"/api/v1/slots/"+slotID+"/swap-candidates?requester_id="+holder)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("候选查询状态码 = %d, body=%v", resp.StatusCode, candidates)
	}
	list := candidates["candidates"].([]interface{})
	if len(list) == 0 {
		t.Fatal("应有换班候选")
	}
	partner := list[0].(map[string]interface{})["staff"].(map[string]interface{})["id"].(string)

	resp, swapped := postJSON(t, srv.URL+"/api/v1/slots/"+slotID+"/swap", map[string]interface{}{
		"from_staff_id": holder,
		"to_staff_id":   partner,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("换班状态码 = %d, body=%v", resp.StatusCode, swapped)
	}

	found := false
	for _, a := range swapped["assigned"].([]interface{}) {
		if a.(map[string]interface{})["staff_id"] == partner {
			found = true
		}
		if a.(map[string]interface{})["staff_id"] == holder {
			t.Error("原持有人应已移出槽位")
		}
	}
	if !found {
		t.Error("接班人应在槽位内")
	}
}

func TestOverworkAPIValidation(t *testing.T) {
	srv, _ := testServer(t)

	// 非法kind
	resp, body := postJSON(t, srv.URL+"/api/v1/overwork", map[string]interface{}{
		"staff_id":     uuid.New().String(),
		"extra_shifts": 4,
		"kind":         "forever",
		"reason":       "测试",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400, body=%v", resp.StatusCode, body)
	}

	// 审批不存在的申请
	resp, body = postJSON(t, srv.URL+"/api/v1/overwork/"+uuid.New().String()+"/decide", map[string]interface{}{
		"approve":    true,
		"decided_by": uuid.New().String(),
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("状态码 = %d, 期望 404, body=%v", resp.StatusCode, body)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, 期望 NOT_FOUND", body["code"])
	}
}

func TestClearAPI(t *testing.T) {
	srv, loc := testServer(t)

	postJSON(t, srv.URL+"/api/v1/schedule/generate", map[string]interface{}{
		"location_id": loc.ID.String(),
		"start_date":  "2025-09-01",
		"end_date":    "2025-09-03",
	})

	resp, body := postJSON(t, srv.URL+"/api/v1/schedule/clear", map[string]interface{}{
		"location_id": loc.ID.String(),
		"start_date":  "2025-09-01",
		"end_date":    "2025-09-03",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("状态码 = %d, body=%v", resp.StatusCode, body)
	}
	if body["deleted"].(float64) != 6 {
		t.Errorf("deleted = %v, 期望 6", body["deleted"])
	}
}
