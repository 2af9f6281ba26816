// Package allocator 提供排班分配器（Shift Allocator）
// 单趟贪心、不回溯：按时间顺序处理槽位，填不满的部分记为冲突返回，
// 绝不中途整体失败，保证结果可解释、可复现
package allocator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/workload"
)

// ExtraShiftsFunc 查询员工在某日期可用的加班额度
type ExtraShiftsFunc func(staffID uuid.UUID, date string) int

// Conflict 未能填满的槽位缺口
type Conflict struct {
	SlotID    uuid.UUID  `json:"slot_id"`
	Date      string     `json:"date"`
	ShiftName string     `json:"shift_name"`
	Role      model.Role `json:"role"`
	Shortfall int        `json:"shortfall"`
}

// Statistics 分配统计
type Statistics struct {
	TotalSlots       int           `json:"total_slots"`
	FilledSlots      int           `json:"filled_slots"` // 完全填满的槽位数
	TotalAssignments int           `json:"total_assignments"`
	TotalShortfall   int           `json:"total_shortfall"`
	FillRate         float64       `json:"fill_rate"` // 百分比
	Duration         time.Duration `json:"duration"`
}

// Result 分配结果：尽力而为的填充加显式冲突清单
type Result struct {
	Slots      []*model.ShiftSlot `json:"slots"`
	Conflicts  []Conflict         `json:"conflicts"`
	Statistics Statistics         `json:"statistics"`
}

// Allocator 排班分配器
type Allocator struct {
	tracker  *workload.Tracker
	extraFor ExtraShiftsFunc
	log      *logger.EngineLogger
}

// New 创建排班分配器
// extraFor 为 nil 时视为没有任何加班额度
func New(tracker *workload.Tracker, extraFor ExtraShiftsFunc) *Allocator {
	if extraFor == nil {
		extraFor = func(uuid.UUID, string) int { return 0 }
	}
	return &Allocator{
		tracker:  tracker,
		extraFor: extraFor,
		log:      logger.NewEngineLogger("allocator"),
	}
}

// Allocate 把员工分配到槽位
// 致命错误只在输入不合法时出现；人手不足只产生冲突清单
func (a *Allocator) Allocate(ctx context.Context, slots []*model.ShiftSlot, staff []*model.StaffProfile, limits model.WorkloadLimits) (*Result, error) {
	start := time.Now()

	if !limits.Validate() {
		return nil, errors.InvalidInput("limits", "上限配置必须为正数")
	}
	if len(staff) == 0 {
		return nil, errors.New(errors.CodeNoEligibleStaff, "可用员工列表为空")
	}

	result := &Result{Slots: slots}
	if len(slots) == 0 {
		return result, nil
	}

	a.tracker.RegisterAll(staff)
	a.log.StartGeneration(slots[0].LocationID.String(), len(staff), countDates(slots))

	// 时间顺序在前；同日需求人数多的槽位先挑人，减少后段冲突
	ordered := make([]*model.ShiftSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date < ordered[j].Date
		}
		if ordered[i].TotalRequired() != ordered[j].TotalRequired() {
			return ordered[i].TotalRequired() > ordered[j].TotalRequired()
		}
		return ordered[i].Definition.Name < ordered[j].Definition.Name
	})

	for _, slot := range ordered {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		a.fillSlot(slot, staff, limits, result)
	}

	a.finalize(result, start)
	return result, nil
}

// fillSlot 为单个槽位按角色挑选并预占员工
func (a *Allocator) fillSlot(slot *model.ShiftSlot, staff []*model.StaffProfile, limits model.WorkloadLimits, result *Result) {
	for _, role := range rolesOf(slot) {
		need := slot.Required[role] - slot.AssignedCount(role)
		if need <= 0 {
			continue
		}

		candidates := a.rankCandidates(slot, role, staff)
		assigned := 0
		for _, cand := range candidates {
			if assigned >= need {
				break
			}
			extra := a.extraFor(cand.ID, slot.Date)
			if err := a.tracker.Reserve(cand.ID, slot, limits, extra); err != nil {
				// 候选人不合格（触顶或时间重叠），换下一个
				continue
			}
			slot.Assign(cand.ID, role)
			assigned++
		}

		if assigned < need {
			result.Conflicts = append(result.Conflicts, Conflict{
				SlotID:    slot.ID,
				Date:      slot.Date,
				ShiftName: slot.Definition.Name,
				Role:      role,
				Shortfall: need - assigned,
			})
		}
	}
}

// rankCandidates 构建并排序候选员工
// 升序看当前窗口班次数，再看连续工作天数，最后按员工ID保证可复现
func (a *Allocator) rankCandidates(slot *model.ShiftSlot, role model.Role, staff []*model.StaffProfile) []*model.StaffProfile {
	windowKey := model.MonthOf(slot.Date)

	type scored struct {
		staff  *model.StaffProfile
		count  int
		streak int
	}

	var candidates []scored
	for _, s := range staff {
		if s.Role != role {
			continue
		}
		if !s.IsActiveOn(slot.Date) {
			continue
		}
		if !s.WorksAt(slot.LocationID) {
			continue
		}
		if slot.HasStaff(s.ID) {
			continue
		}
		snapshot, err := a.tracker.Snapshot(s.ID, windowKey)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{staff: s, count: snapshot.ShiftCount, streak: snapshot.Streak})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count < candidates[j].count
		}
		if candidates[i].streak != candidates[j].streak {
			return candidates[i].streak < candidates[j].streak
		}
		return candidates[i].staff.ID.String() < candidates[j].staff.ID.String()
	})

	ranked := make([]*model.StaffProfile, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.staff
	}
	return ranked
}

// finalize 汇总统计并记日志
func (a *Allocator) finalize(result *Result, start time.Time) {
	stats := &result.Statistics
	stats.TotalSlots = len(result.Slots)
	for _, slot := range result.Slots {
		stats.TotalAssignments += len(slot.Assigned)
		if len(slot.Assigned) >= slot.TotalRequired() {
			stats.FilledSlots++
		}
	}
	for _, c := range result.Conflicts {
		stats.TotalShortfall += c.Shortfall
	}
	if stats.TotalSlots > 0 {
		stats.FillRate = float64(stats.FilledSlots) / float64(stats.TotalSlots) * 100
	}
	stats.Duration = time.Since(start)

	if len(result.Slots) > 0 {
		a.log.GenerationComplete(result.Slots[0].LocationID.String(), stats.Duration, stats.FilledSlots, len(result.Conflicts))
	}
}

// rolesOf 按固定顺序返回槽位需求角色
func rolesOf(slot *model.ShiftSlot) []model.Role {
	roles := make([]model.Role, 0, len(slot.Required))
	for r := range slot.Required {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// countDates 统计槽位覆盖的日期数
func countDates(slots []*model.ShiftSlot) int {
	dates := make(map[string]struct{})
	for _, s := range slots {
		dates[s.Date] = struct{}{}
	}
	return len(dates)
}

// Describe 返回冲突的可读描述
func (c Conflict) Describe() string {
	return fmt.Sprintf("%s %s 班 %s 缺 %d 人", c.Date, c.ShiftName, c.Role, c.Shortfall)
}
