package workload

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

func makeSlot(date, name, start, end string) *model.ShiftSlot {
	return &model.ShiftSlot{
		BaseModel: model.NewBaseModel(),
		Date:      date,
		Definition: model.ShiftDefinition{
			Name:      name,
			StartTime: start,
			EndTime:   end,
			Headcount: map[model.Role]int{model.RolePerawat: 1},
		},
		Required: map[model.Role]int{model.RolePerawat: 1},
	}
}

func pagiSlot(date string) *model.ShiftSlot {
	return makeSlot(date, "PAGI", "07:00", "14:00")
}

func TestSnapshotUnknownStaff(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.Snapshot(uuid.New(), "2025-09")
	if !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("未登记员工应返回 NotFound, got %v", err)
	}
}

func TestSnapshotEmptyWindow(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)

	w, err := tracker.Snapshot(staffID, "2025-09")
	if err != nil {
		t.Fatalf("空窗口不应报错, got %v", err)
	}
	if w.ShiftCount != 0 || w.TotalHours != 0 || w.Streak != 0 {
		t.Errorf("空窗口应为零值, got %+v", w)
	}
}

func TestReserveUpdatesWindow(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	if err := tracker.Reserve(staffID, pagiSlot("2025-09-01"), limits, 0); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.ShiftCount != 1 {
		t.Errorf("ShiftCount = %d, want 1", w.ShiftCount)
	}
	if w.TotalHours != 7 {
		t.Errorf("TotalHours = %.1f, want 7", w.TotalHours)
	}
	if w.Streak != 1 || w.LastWorkedDate != "2025-09-01" {
		t.Errorf("streak = %d lastWorked = %s, want 1 / 2025-09-01", w.Streak, w.LastWorkedDate)
	}
}

func TestReserveCeiling(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.WorkloadLimits{MaxShiftsPerWindow: 2, MaxConsecutiveDays: 10}

	tracker.Reserve(staffID, pagiSlot("2025-09-01"), limits, 0)
	tracker.Reserve(staffID, pagiSlot("2025-09-03"), limits, 0)

	// 第 3 班触顶
	err := tracker.Reserve(staffID, pagiSlot("2025-09-05"), limits, 0)
	if !errors.Is(err, errors.CodeConstraintViolation) {
		t.Errorf("超上限应返回 ConstraintViolation, got %v", err)
	}

	// 加班批准额度 +1 后放行
	if err := tracker.Reserve(staffID, pagiSlot("2025-09-05"), limits, 1); err != nil {
		t.Errorf("有加班额度应放行, got %v", err)
	}
}

func TestReserveOverlapRejected(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	tracker.Reserve(staffID, makeSlot("2025-09-01", "PAGI", "07:00", "14:00"), limits, 0)

	// 同日 10:00-18:00 与 PAGI 重叠
	err := tracker.Reserve(staffID, makeSlot("2025-09-01", "TENGAH", "10:00", "18:00"), limits, 0)
	if !errors.Is(err, errors.CodeScheduleConflict) {
		t.Errorf("时间重叠应返回 ScheduleConflict, got %v", err)
	}

	// 同日不重叠班次可以接
	if err := tracker.Reserve(staffID, makeSlot("2025-09-01", "SIANG", "14:00", "21:00"), limits, 0); err != nil {
		t.Errorf("不重叠班次应放行, got %v", err)
	}
}

func TestReserveConsecutiveDaysLimit(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.WorkloadLimits{MaxShiftsPerWindow: 30, MaxConsecutiveDays: 3}

	for _, d := range []string{"2025-09-01", "2025-09-02", "2025-09-03"} {
		if err := tracker.Reserve(staffID, pagiSlot(d), limits, 0); err != nil {
			t.Fatalf("第 3 天内应放行, got %v", err)
		}
	}

	err := tracker.Reserve(staffID, pagiSlot("2025-09-04"), limits, 0)
	if !errors.Is(err, errors.CodeConstraintViolation) {
		t.Errorf("连续第 4 天应被拒, got %v", err)
	}

	// 断档一天后可继续
	if err := tracker.Reserve(staffID, pagiSlot("2025-09-05"), limits, 0); err != nil {
		t.Errorf("断档后应放行, got %v", err)
	}
}

func TestStreakBookkeeping(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	// 连排 1、2、3 号
	for _, d := range []string{"2025-09-01", "2025-09-02", "2025-09-03"} {
		tracker.Reserve(staffID, pagiSlot(d), limits, 0)
	}
	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.Streak != 3 {
		t.Errorf("连排 3 天 streak = %d, want 3", w.Streak)
	}

	// 同日第二个班次不改变 streak
	tracker.Reserve(staffID, makeSlot("2025-09-03", "MALAM", "21:00", "07:00"), limits, 0)
	w, _ = tracker.Snapshot(staffID, "2025-09")
	if w.Streak != 3 {
		t.Errorf("同日加班后 streak = %d, want 3", w.Streak)
	}

	// 断档后 5 号排班，streak 归 1
	tracker.Reserve(staffID, pagiSlot("2025-09-05"), limits, 0)
	w, _ = tracker.Snapshot(staffID, "2025-09")
	if w.Streak != 1 {
		t.Errorf("断档后 streak = %d, want 1", w.Streak)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	slot := pagiSlot("2025-09-01")
	tracker.Reserve(staffID, slot, limits, 0)

	tracker.Release(staffID, slot)
	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.ShiftCount != 0 || w.Streak != 0 {
		t.Errorf("释放后应回到零值, got %+v", w)
	}

	// 重复释放为空操作
	tracker.Release(staffID, slot)
	w, _ = tracker.Snapshot(staffID, "2025-09")
	if w.ShiftCount != 0 || w.TotalHours != 0 {
		t.Errorf("重复释放不应改变状态, got %+v", w)
	}
}

func TestReleaseRecomputesStreak(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	slots := map[string]*model.ShiftSlot{}
	for _, d := range []string{"2025-09-01", "2025-09-02", "2025-09-03"} {
		slots[d] = pagiSlot(d)
		tracker.Reserve(staffID, slots[d], limits, 0)
	}

	// 释放中间一天，收尾连续段只剩 3 号
	tracker.Release(staffID, slots["2025-09-02"])
	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.Streak != 1 || w.LastWorkedDate != "2025-09-03" {
		t.Errorf("释放中间日后 streak = %d lastWorked = %s, want 1 / 2025-09-03", w.Streak, w.LastWorkedDate)
	}
}

func TestReserveIdempotentSameSlot(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.DefaultWorkloadLimits()

	slot := pagiSlot("2025-09-01")
	tracker.Reserve(staffID, slot, limits, 0)
	if err := tracker.Reserve(staffID, slot, limits, 0); err != nil {
		t.Errorf("重复预占同一槽位应为空操作, got %v", err)
	}

	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.ShiftCount != 1 {
		t.Errorf("重复预占后 ShiftCount = %d, want 1", w.ShiftCount)
	}
}

func TestConcurrentReserveRespectsCeiling(t *testing.T) {
	tracker := NewTracker()
	staffID := uuid.New()
	tracker.Register(staffID)
	limits := model.WorkloadLimits{MaxShiftsPerWindow: 10, MaxConsecutiveDays: 31}

	// 20 个并发预占，不重叠不连续，上限 10：恰好 10 个成功
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot := pagiSlot("2025-09-" + twoDigits(1+i))
			if err := tracker.Reserve(staffID, slot, limits, 0); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("并发预占成功数 = %d, want 10", succeeded)
	}
	w, _ := tracker.Snapshot(staffID, "2025-09")
	if w.ShiftCount != 10 {
		t.Errorf("并发后 ShiftCount = %d, want 10", w.ShiftCount)
	}
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
