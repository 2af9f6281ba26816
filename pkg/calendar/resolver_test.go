package calendar

import (
	"testing"
	"time"

	"github.com/yipai/yipai/pkg/model"
)

func weekdays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

func weekend() []time.Weekday {
	return []time.Weekday{time.Saturday, time.Sunday}
}

func icuLocation() *model.Location {
	loc := &model.Location{BaseModel: model.NewBaseModel(), Name: "ICU", Code: "ICU"}
	loc.Configs = []*model.ShiftTypeConfig{
		{
			BaseModel:  model.NewBaseModel(),
			LocationID: loc.ID,
			Name:       "三班倒-工作日",
			Weekdays:   weekdays(),
			Definitions: []*model.ShiftDefinition{
				{Name: "PAGI", StartTime: "07:00", EndTime: "14:00", Headcount: map[model.Role]int{model.RolePerawat: 4}},
				{Name: "SIANG", StartTime: "14:00", EndTime: "21:00", Headcount: map[model.Role]int{model.RolePerawat: 4}},
				{Name: "MALAM", StartTime: "21:00", EndTime: "07:00", Headcount: map[model.Role]int{model.RolePerawat: 3}},
			},
		},
		{
			BaseModel:  model.NewBaseModel(),
			LocationID: loc.ID,
			Name:       "三班倒-周末",
			Weekdays:   weekend(),
			Definitions: []*model.ShiftDefinition{
				{Name: "PAGI", StartTime: "07:00", EndTime: "14:00", Headcount: map[model.Role]int{model.RolePerawat: 3}},
				{Name: "SIANG", StartTime: "14:00", EndTime: "21:00", Headcount: map[model.Role]int{model.RolePerawat: 4}},
				{Name: "MALAM", StartTime: "21:00", EndTime: "07:00", Headcount: map[model.Role]int{model.RolePerawat: 3}},
			},
		},
	}
	return loc
}

func TestResolveWeek(t *testing.T) {
	r := NewResolver()
	// 2025-09-01 周一 至 2025-09-07 周日
	slots, err := r.Resolve(icuLocation(), model.DateRange{StartDate: "2025-09-01", EndDate: "2025-09-07"}, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// 每天 3 个班次
	if len(slots) != 21 {
		t.Fatalf("槽位数 = %d, want 21", len(slots))
	}

	// 工作日 PAGI 需要 4 人，周末 PAGI 需要 3 人
	byKey := make(map[string]*model.ShiftSlot)
	for _, s := range slots {
		if _, dup := byKey[s.Key()]; dup {
			t.Errorf("重复槽位 %s", s.Key())
		}
		byKey[s.Key()] = s
	}
	if got := byKey["2025-09-01/PAGI"].Required[model.RolePerawat]; got != 4 {
		t.Errorf("工作日 PAGI 需求 = %d, want 4", got)
	}
	if got := byKey["2025-09-06/PAGI"].Required[model.RolePerawat]; got != 3 {
		t.Errorf("周末 PAGI 需求 = %d, want 3", got)
	}
}

func TestResolveNoMatchingConfig(t *testing.T) {
	loc := &model.Location{BaseModel: model.NewBaseModel(), Name: "门诊", Code: "POLI"}
	loc.Configs = []*model.ShiftTypeConfig{
		{
			BaseModel:  model.NewBaseModel(),
			LocationID: loc.ID,
			Name:       "工作日白班",
			Weekdays:   weekdays(),
			Definitions: []*model.ShiftDefinition{
				{Name: "PAGI", StartTime: "08:00", EndTime: "16:00", Headcount: map[model.Role]int{model.RoleStaf: 2}},
			},
		},
	}

	r := NewResolver()
	// 2025-09-06/07 为周末，无适用班型
	slots, err := r.Resolve(loc, model.DateRange{StartDate: "2025-09-06", EndDate: "2025-09-07"}, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("无适用班型应产出 0 个槽位, got %d", len(slots))
	}
}

func TestResolveMultiplierCeiling(t *testing.T) {
	r := NewResolver()
	m := &Multipliers{Weekend: map[string]float64{"PAGI": 0.7}}

	// 2025-09-06 周六: 3 * 0.7 = 2.1，向上取整为 3
	slots, err := r.Resolve(icuLocation(), model.DateRange{StartDate: "2025-09-06", EndDate: "2025-09-06"}, m)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	for _, s := range slots {
		if s.Definition.Name == "PAGI" {
			if got := s.Required[model.RolePerawat]; got != 3 {
				t.Errorf("0.7 倍率后需求 = %d, want 3 (向上取整)", got)
			}
		}
		if s.Definition.Name == "SIANG" {
			// 无倍率配置保持原值
			if got := s.Required[model.RolePerawat]; got != 4 {
				t.Errorf("无倍率班次需求 = %d, want 4", got)
			}
		}
	}
}

func TestResolveRestartable(t *testing.T) {
	r := NewResolver()
	loc := icuLocation()

	full, _ := r.Resolve(loc, model.DateRange{StartDate: "2025-09-01", EndDate: "2025-09-04"}, nil)
	first, _ := r.Resolve(loc, model.DateRange{StartDate: "2025-09-01", EndDate: "2025-09-02"}, nil)
	second, _ := r.Resolve(loc, model.DateRange{StartDate: "2025-09-03", EndDate: "2025-09-04"}, nil)

	if len(full) != len(first)+len(second) {
		t.Errorf("分段展开槽位数 %d+%d 应等于整段 %d", len(first), len(second), len(full))
	}
}

func TestResolveInvalidInput(t *testing.T) {
	r := NewResolver()

	if _, err := r.Resolve(nil, model.DateRange{StartDate: "2025-09-01", EndDate: "2025-09-02"}, nil); err == nil {
		t.Error("location 为空应报错")
	}
	if _, err := r.Resolve(icuLocation(), model.DateRange{StartDate: "2025-09-02", EndDate: "2025-09-01"}, nil); err == nil {
		t.Error("倒序日期范围应报错")
	}
}
