// Package workload 提供员工工作量跟踪（Workload Tracker）
// Reserve/Release 是分配数据的唯一变更入口，排班器、换班器和人工调整
// 都经由这里，保证 WorkloadWindow 与槽位分配始终一致
package workload

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// 按员工分片的锁数量
const lockStripes = 64

// heldSlot 已预占槽位的摘要
type heldSlot struct {
	date      string
	timeRange model.TimeRange
	windowKey string
	hours     float64
}

// staffState 单个员工的工作量状态
type staffState struct {
	windows        map[string]*model.WorkloadWindow // key: YYYY-MM
	held           map[uuid.UUID]heldSlot           // key: 槽位ID
	dates          map[string]int                   // 日期 -> 当日班次数
	streak         int
	lastWorkedDate string
}

func newStaffState() *staffState {
	return &staffState{
		windows: make(map[string]*model.WorkloadWindow),
		held:    make(map[uuid.UUID]heldSlot),
		dates:   make(map[string]int),
	}
}

// Tracker 工作量跟踪器
// 写操作按员工维度分片加锁，不同员工的预占互不阻塞
type Tracker struct {
	mu      sync.RWMutex
	states  map[uuid.UUID]*staffState
	stripes [lockStripes]sync.Mutex
	log     *logger.EngineLogger
}

// NewTracker 创建工作量跟踪器
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[uuid.UUID]*staffState),
		log:    logger.NewEngineLogger("workload"),
	}
}

// Register 登记员工；未登记员工的查询返回 NotFound
func (t *Tracker) Register(staffID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.states[staffID]; !ok {
		t.states[staffID] = newStaffState()
	}
}

// RegisterAll 批量登记员工
func (t *Tracker) RegisterAll(staff []*model.StaffProfile) {
	for _, s := range staff {
		t.Register(s.ID)
	}
}

// Load 从既有槽位分配重建状态（服务启动或整段重排时使用）
func (t *Tracker) Load(slots []*model.ShiftSlot) {
	for _, slot := range slots {
		for _, a := range slot.Assigned {
			t.Register(a.StaffID)
			t.lockStaff(a.StaffID)
			state := t.state(a.StaffID)
			t.apply(state, slot)
			t.unlockStaff(a.StaffID)
		}
	}
}

// stripeFor 返回员工对应的锁分片
func (t *Tracker) stripeFor(staffID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(staffID[:])
	return &t.stripes[h.Sum32()%lockStripes]
}

func (t *Tracker) lockStaff(staffID uuid.UUID)   { t.stripeFor(staffID).Lock() }
func (t *Tracker) unlockStaff(staffID uuid.UUID) { t.stripeFor(staffID).Unlock() }

// state 获取员工状态；调用方需已持有对应分片锁
func (t *Tracker) state(staffID uuid.UUID) *staffState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[staffID]
}

// Snapshot 返回员工在某窗口的工作量快照
// 员工未登记返回 NotFound；空窗口返回零值，不报错
func (t *Tracker) Snapshot(staffID uuid.UUID, windowKey string) (model.WorkloadWindow, error) {
	state := t.state(staffID)
	if state == nil {
		return model.WorkloadWindow{}, errors.NotFound("员工", staffID.String())
	}

	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)

	w := model.WorkloadWindow{StaffID: staffID, WindowKey: windowKey}
	if existing, ok := state.windows[windowKey]; ok {
		w.ShiftCount = existing.ShiftCount
		w.TotalHours = existing.TotalHours
	}
	w.Streak = state.streak
	w.LastWorkedDate = state.lastWorkedDate
	return w, nil
}

// Holds 检查员工是否持有某槽位的分配
func (t *Tracker) Holds(staffID, slotID uuid.UUID) bool {
	state := t.state(staffID)
	if state == nil {
		return false
	}
	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)
	_, ok := state.held[slotID]
	return ok
}

// HasOverlapOn 检查员工在某日期是否已有时间重叠的分配
func (t *Tracker) HasOverlapOn(staffID uuid.UUID, tr model.TimeRange) bool {
	state := t.state(staffID)
	if state == nil {
		return false
	}
	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)
	return t.overlaps(state, tr)
}

func (t *Tracker) overlaps(state *staffState, tr model.TimeRange) bool {
	for _, h := range state.held {
		if h.timeRange.Overlaps(tr) {
			return true
		}
	}
	return false
}

// ProjectedRun 返回若在某日期排班将形成的最大连续工作天数
func (t *Tracker) ProjectedRun(staffID uuid.UUID, date string) int {
	state := t.state(staffID)
	if state == nil {
		return 1
	}
	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)
	return projectedRun(state, date)
}

func projectedRun(state *staffState, date string) int {
	before := 0
	for d := model.PrevDate(date); state.dates[d] > 0; d = model.PrevDate(d) {
		before++
		if before > 366 {
			break
		}
	}
	after := 0
	for d := model.NextDate(date); state.dates[d] > 0; d = model.NextDate(d) {
		after++
		if after > 366 {
			break
		}
	}
	return before + 1 + after
}

// Reserve 为员工预占一个槽位
// 仅当不违反硬上限（或持有覆盖该日期的加班批准额度 extraShifts）时成功；
// 同日时间重叠直接拒绝；对已持有槽位的重复预占为空操作
func (t *Tracker) Reserve(staffID uuid.UUID, slot *model.ShiftSlot, limits model.WorkloadLimits, extraShifts int) error {
	state := t.state(staffID)
	if state == nil {
		return errors.NotFound("员工", staffID.String())
	}

	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)

	if _, ok := state.held[slot.ID]; ok {
		return nil // 幂等
	}

	tr := slot.TimeRange()
	if t.overlaps(state, tr) {
		return errors.ScheduleConflict(staffID.String(), slot.Date, "时间重叠")
	}

	windowKey := model.MonthOf(slot.Date)
	current := 0
	if w, ok := state.windows[windowKey]; ok {
		current = w.ShiftCount
	}

	ceiling := limits.MaxShiftsPerWindow + extraShifts
	if current+1 > ceiling {
		t.log.ReserveRejected(staffID.String(), slot.Date,
			fmt.Sprintf("班次数 %d 将超过上限 %d", current+1, ceiling))
		return errors.ConstraintViolation(staffID.String(),
			fmt.Sprintf("窗口 %s 班次数将达 %d，上限 %d", windowKey, current+1, ceiling))
	}

	// 加班批准放开连续天数检查
	if extraShifts == 0 {
		if run := projectedRun(state, slot.Date); run > limits.MaxConsecutiveDays {
			t.log.ReserveRejected(staffID.String(), slot.Date,
				fmt.Sprintf("连续工作 %d 天将超过上限 %d", run, limits.MaxConsecutiveDays))
			return errors.ConstraintViolation(staffID.String(),
				fmt.Sprintf("连续工作天数将达 %d，上限 %d", run, limits.MaxConsecutiveDays))
		}
	}

	t.apply(state, slot)
	return nil
}

// apply 落地一次预占；调用方需已持有分片锁
func (t *Tracker) apply(state *staffState, slot *model.ShiftSlot) {
	windowKey := model.MonthOf(slot.Date)
	w, ok := state.windows[windowKey]
	if !ok {
		w = &model.WorkloadWindow{WindowKey: windowKey}
		state.windows[windowKey] = w
	}
	w.ShiftCount++
	w.TotalHours += slot.Hours()

	state.held[slot.ID] = heldSlot{
		date:      slot.Date,
		timeRange: slot.TimeRange(),
		windowKey: windowKey,
		hours:     slot.Hours(),
	}

	// 连续天数簿记：同日重复不计，相邻日递增，断档归 1
	if state.dates[slot.Date] == 0 {
		switch {
		case state.lastWorkedDate == "":
			state.streak = 1
			state.lastWorkedDate = slot.Date
		case slot.Date == model.NextDate(state.lastWorkedDate):
			state.streak++
			state.lastWorkedDate = slot.Date
		case slot.Date > state.lastWorkedDate:
			state.streak = 1
			state.lastWorkedDate = slot.Date
		default:
			// 乱序补排（换班到较早日期），重算收尾连续段
			state.dates[slot.Date]++
			recomputeStreak(state)
			return
		}
	}
	state.dates[slot.Date]++
}

// Release 释放员工的槽位预占；未持有时为空操作（人工修正可能与自动路径竞争）
func (t *Tracker) Release(staffID uuid.UUID, slot *model.ShiftSlot) {
	state := t.state(staffID)
	if state == nil {
		return
	}

	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)

	h, ok := state.held[slot.ID]
	if !ok {
		return
	}
	delete(state.held, slot.ID)

	if w, ok := state.windows[h.windowKey]; ok {
		w.ShiftCount--
		w.TotalHours -= h.hours
	}

	state.dates[h.date]--
	if state.dates[h.date] <= 0 {
		delete(state.dates, h.date)
		recomputeStreak(state)
	}
}

// recomputeStreak 从日期集合重算 (lastWorkedDate, streak)；调用方需已持有分片锁
func recomputeStreak(state *staffState) {
	last := ""
	for d := range state.dates {
		if d > last {
			last = d
		}
	}
	if last == "" {
		state.streak = 0
		state.lastWorkedDate = ""
		return
	}

	streak := 1
	for d := model.PrevDate(last); state.dates[d] > 0; d = model.PrevDate(d) {
		streak++
		if streak > 366 {
			break
		}
	}
	state.streak = streak
	state.lastWorkedDate = last
}

// Windows 返回员工所有非空窗口的快照（统计用）
func (t *Tracker) Windows(staffID uuid.UUID) []model.WorkloadWindow {
	state := t.state(staffID)
	if state == nil {
		return nil
	}
	t.lockStaff(staffID)
	defer t.unlockStaff(staffID)

	result := make([]model.WorkloadWindow, 0, len(state.windows))
	for key, w := range state.windows {
		result = append(result, model.WorkloadWindow{
			StaffID:        staffID,
			WindowKey:      key,
			ShiftCount:     w.ShiftCount,
			TotalHours:     w.TotalHours,
			Streak:         state.streak,
			LastWorkedDate: state.lastWorkedDate,
		})
	}
	return result
}
