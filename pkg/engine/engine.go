// Package engine 对外暴露排班引擎的粗粒度操作入口
// 排班生成、加班审批、换班匹配与提交都经由同一个 Engine 实例，
// 保证全部工作量变更收敛到单一 Workload Tracker
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/calendar"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/overwork"
	"github.com/yipai/yipai/pkg/stats"
	"github.com/yipai/yipai/pkg/swap"
	"github.com/yipai/yipai/pkg/workload"
)

// SlotStore 槽位持久化接口
type SlotStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ShiftSlot, error)
	ListRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) ([]*model.ShiftSlot, error)
	// ReplaceRange 在单个事务内删除范围内旧槽位并写入新槽位
	ReplaceRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange, slots []*model.ShiftSlot) error
	// Update 乐观锁更新，版本不匹配时返回 STALE_STATE_CONFLICT
	Update(ctx context.Context, slot *model.ShiftSlot) error
	DeleteRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) (int, error)
}

// StaffStore 员工档案读取接口
type StaffStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.StaffProfile, error)
	ListActive(ctx context.Context, locationID uuid.UUID) ([]*model.StaffProfile, error)
}

// LocationStore 科室配置读取接口
type LocationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Location, error)
}

// Event 领域事件（提交成功后发布，订阅方失败不影响主流程）
type Event struct {
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// 领域事件类型
const (
	EventScheduleGenerated = "schedule.generated"
	EventAssignmentChanged = "assignment.changed"
	EventOverworkDecided   = "overwork.decided"
	EventSwapCommitted     = "swap.committed"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(event Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Engine 排班引擎门面
type Engine struct {
	resolver *calendar.Resolver
	tracker  *workload.Tracker
	overwork *overwork.Workflow
	analyzer *stats.Analyzer

	slots     SlotStore
	staff     StaffStore
	locations LocationStore
	events    Publisher

	limits model.WorkloadLimits
	log    *logger.EngineLogger

	// 排班生成按科室串行，见 genMu 的持有范围
	genMu sync.Mutex
}

// Options 引擎装配参数
type Options struct {
	Slots     SlotStore
	Staff     StaffStore
	Locations LocationStore
	Events    Publisher
	Limits    model.WorkloadLimits

	// Overwork 直接注入已装配的工作流；为空时引擎用
	// OverworkStore 和内部 tracker 自行装配
	Overwork       *overwork.Workflow
	OverworkStore  overwork.Store
	OverworkConfig overwork.Config
}

// New 装配排班引擎
func New(opts Options) (*Engine, error) {
	if opts.Slots == nil || opts.Staff == nil || opts.Locations == nil {
		return nil, errors.InvalidInput("options", "slots/staff/locations 存储不能为空")
	}
	if !opts.Limits.Validate() {
		opts.Limits = model.DefaultWorkloadLimits()
	}
	if opts.Events == nil {
		opts.Events = noopPublisher{}
	}

	tracker := workload.NewTracker()
	if opts.Overwork == nil {
		store := opts.OverworkStore
		if store == nil {
			store = overwork.NewMemoryStore()
		}
		opts.Overwork = overwork.NewWorkflow(store, tracker, opts.OverworkConfig)
	}

	e := &Engine{
		resolver:  calendar.NewResolver(),
		tracker:   tracker,
		overwork:  opts.Overwork,
		analyzer:  stats.NewAnalyzer(),
		slots:     opts.Slots,
		staff:     opts.Staff,
		locations: opts.Locations,
		events:    opts.Events,
		limits:    opts.Limits,
		log:       logger.NewEngineLogger("engine"),
	}
	return e, nil
}

// Tracker 暴露工作量追踪器的只读视图（统计与诊断用）
func (e *Engine) Tracker() *workload.Tracker { return e.tracker }

// Limits 当前生效的工作量约束
func (e *Engine) Limits() model.WorkloadLimits { return e.limits }

// extraShiftsFunc 把加班审批额度适配成分配器与匹配器可用的查询函数
func (e *Engine) extraShiftsFunc(ctx context.Context) func(staffID uuid.UUID, date string) int {
	return func(staffID uuid.UUID, date string) int {
		extra, err := e.overwork.ExtraShiftsFor(ctx, staffID, date)
		if err != nil {
			return 0
		}
		return extra
	}
}

// Warmup 启动时从存储重建工作量状态
func (e *Engine) Warmup(ctx context.Context, locationID uuid.UUID, dr model.DateRange) error {
	staff, err := e.staff.ListActive(ctx, locationID)
	if err != nil {
		return err
	}
	e.tracker.RegisterAll(staff)

	slots, err := e.slots.ListRange(ctx, locationID, dr)
	if err != nil {
		return err
	}
	e.tracker.Load(slots)
	return nil
}

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	LocationID  uuid.UUID             `json:"location_id"`
	Range       model.DateRange       `json:"range"`
	Multipliers *calendar.Multipliers `json:"multipliers,omitempty"`
}

// GenerateResult 排班生成结果
type GenerateResult struct {
	Slots      []*model.ShiftSlot        `json:"slots"`
	Conflicts  []allocator.Conflict      `json:"conflicts"`
	Statistics allocator.Statistics      `json:"statistics"`
	Report     *stats.DistributionReport `json:"report"`
}

// GenerateSchedule 生成一个日期范围的完整排班
// 同科室的生成互相串行；范围内旧排班被整体替换，范围外的工作量保留
func (e *Engine) GenerateSchedule(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()

	location, err := e.locations.GetByID(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, errors.NotFound("location", req.LocationID.String())
	}

	staff, err := e.staff.ListActive(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	e.tracker.RegisterAll(staff)

	// 先释放范围内已有分配，重排不受旧结果束缚
	existing, err := e.slots.ListRange(ctx, req.LocationID, req.Range)
	if err != nil {
		return nil, err
	}
	for _, slot := range existing {
		for _, asg := range slot.Assigned {
			e.tracker.Release(asg.StaffID, slot)
		}
	}

	e.log.StartGeneration(req.LocationID.String(), len(staff), len(req.Range.Days()))

	resolved, err := e.resolver.Resolve(location, req.Range, req.Multipliers)
	if err != nil {
		e.reloadSlots(existing)
		return nil, err
	}

	alloc := allocator.New(e.tracker, e.extraShiftsFunc(ctx))
	result, err := alloc.Allocate(ctx, resolved, staff, e.limits)
	if err != nil {
		// 中途取消时分配器可能已做了部分预占，必须全部释放，
		// 否则追踪器会记住存储里并不存在的班次
		if result != nil {
			for _, slot := range result.Slots {
				for _, asg := range slot.Assigned {
					e.tracker.Release(asg.StaffID, slot)
				}
			}
		}
		e.reloadSlots(existing)
		return nil, err
	}

	if err := e.slots.ReplaceRange(ctx, req.LocationID, req.Range, result.Slots); err != nil {
		// 持久化失败时回滚到旧分配，内存状态与存储保持一致
		for _, slot := range result.Slots {
			for _, asg := range slot.Assigned {
				e.tracker.Release(asg.StaffID, slot)
			}
		}
		e.reloadSlots(existing)
		return nil, errors.PersistenceFailure(err, "replace_slots")
	}

	e.log.GenerationComplete(req.LocationID.String(), result.Statistics.Duration, result.Statistics.FilledSlots, len(result.Conflicts))
	e.events.Publish(Event{
		Type: EventScheduleGenerated,
		At:   time.Now(),
		Payload: map[string]any{
			"location_id": req.LocationID.String(),
			"start_date":  req.Range.StartDate,
			"end_date":    req.Range.EndDate,
			"total_slots": result.Statistics.TotalSlots,
			"conflicts":   len(result.Conflicts),
		},
	})

	report := e.analyzer.Analyze(model.MonthOf(req.Range.StartDate), result.Slots, staff)
	return &GenerateResult{
		Slots:      result.Slots,
		Conflicts:  result.Conflicts,
		Statistics: result.Statistics,
		Report:     report,
	}, nil
}

// reloadSlots 把一批已分配槽位重新计入追踪器（回滚路径）
func (e *Engine) reloadSlots(slots []*model.ShiftSlot) {
	e.tracker.Load(slots)
}

// Assign 手工指派员工到槽位，与自动分配走同一套约束检查
func (e *Engine) Assign(ctx context.Context, slotID, staffID uuid.UUID) (*model.ShiftSlot, error) {
	slot, err := e.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	profile, err := e.staff.GetByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.NotFound("staff", staffID.String())
	}

	required, ok := slot.Required[profile.Role]
	if !ok {
		return nil, errors.InvalidInput("staff", "角色与槽位需求不符")
	}
	if slot.AssignedCount(profile.Role) >= required {
		return nil, errors.ScheduleConflict(staffID.String(), slot.Date, "该角色人数已满")
	}
	if !profile.IsActiveOn(slot.Date) || !profile.WorksAt(slot.LocationID) {
		return nil, errors.NotEligible("员工当日不在该科室服务")
	}

	e.tracker.Register(staffID)
	extra := e.extraShiftsFunc(ctx)(staffID, slot.Date)
	if err := e.tracker.Reserve(staffID, slot, e.limits, extra); err != nil {
		return nil, err
	}

	slot.Assign(staffID, profile.Role)
	if err := e.slots.Update(ctx, slot); err != nil {
		e.tracker.Release(staffID, slot)
		slot.Unassign(staffID)
		return nil, err
	}

	e.events.Publish(Event{
		Type: EventAssignmentChanged,
		At:   time.Now(),
		Payload: map[string]any{
			"slot_id":  slot.ID.String(),
			"staff_id": staffID.String(),
			"action":   "assign",
		},
	})
	return slot, nil
}

// Unassign 手工撤销指派，幂等
func (e *Engine) Unassign(ctx context.Context, slotID, staffID uuid.UUID) (*model.ShiftSlot, error) {
	slot, err := e.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.Unassign(staffID) {
		return slot, nil
	}

	e.tracker.Release(staffID, slot)
	if err := e.slots.Update(ctx, slot); err != nil {
		// 恢复刚释放的预占；同一员工同一槽位不会触顶或重叠
		if rerr := e.tracker.Reserve(staffID, slot, e.limits, e.extraShiftsFunc(ctx)(staffID, slot.Date)); rerr != nil {
			e.log.ReserveRejected(staffID.String(), slot.Date, rerr.Error())
		}
		slot.Assign(staffID, e.roleOf(ctx, staffID))
		return nil, err
	}

	e.events.Publish(Event{
		Type: EventAssignmentChanged,
		At:   time.Now(),
		Payload: map[string]any{
			"slot_id":  slot.ID.String(),
			"staff_id": staffID.String(),
			"action":   "unassign",
		},
	})
	return slot, nil
}

func (e *Engine) roleOf(ctx context.Context, staffID uuid.UUID) model.Role {
	profile, err := e.staff.GetByID(ctx, staffID)
	if err != nil || profile == nil {
		return ""
	}
	return profile.Role
}

// SubmitOverworkRequest 提交加班申请
func (e *Engine) SubmitOverworkRequest(ctx context.Context, in overwork.SubmitInput) (*model.OverworkRequest, error) {
	return e.overwork.Submit(ctx, in, e.limits)
}

// DecideOverworkRequest 审批加班申请
func (e *Engine) DecideOverworkRequest(ctx context.Context, requestID uuid.UUID, approve bool, decidedBy uuid.UUID) (*model.OverworkRequest, error) {
	req, err := e.overwork.Decide(ctx, requestID, approve, decidedBy)
	if err != nil {
		return nil, err
	}

	e.events.Publish(Event{
		Type: EventOverworkDecided,
		At:   time.Now(),
		Payload: map[string]any{
			"request_id": req.ID.String(),
			"staff_id":   req.StaffID.String(),
			"status":     string(req.Status),
		},
	})
	return req, nil
}

// GetOverworkRequest 查询加班申请（过期状态按当前时刻折算）
func (e *Engine) GetOverworkRequest(ctx context.Context, requestID uuid.UUID) (*model.OverworkRequest, error) {
	return e.overwork.Get(ctx, requestID)
}

// FindSwapPartners 为槽位上的某个分配寻找换班候选
func (e *Engine) FindSwapPartners(ctx context.Context, slotID, requesterID uuid.UUID, targetDate string) ([]swap.Candidate, error) {
	slot, err := e.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	staff, err := e.staff.ListActive(ctx, slot.LocationID)
	if err != nil {
		return nil, err
	}
	matcher := swap.NewMatcher(e.tracker, e.extraShiftsFunc(ctx))
	return matcher.FindPartners(slot, requesterID, targetDate, staff, e.limits)
}

// CommitSwap 提交换班：原持有人释放、接班人占用，乐观锁防止并发覆盖
// expectedVersion 为 0 表示跳过版本校验
func (e *Engine) CommitSwap(ctx context.Context, slotID, fromID, toID uuid.UUID, expectedVersion int) (*model.ShiftSlot, error) {
	slot, err := e.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && slot.Version != expectedVersion {
		return nil, errors.StaleState("slot", slotID.String())
	}
	if !slot.HasStaff(fromID) {
		return nil, errors.InvalidInput("from", "原持有人未持有该槽位")
	}
	if slot.HasStaff(toID) {
		return nil, errors.ScheduleConflict(toID.String(), slot.Date, "接班人已在该槽位")
	}

	profile, err := e.staff.GetByID(ctx, toID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.NotFound("staff", toID.String())
	}
	if _, ok := slot.Required[profile.Role]; !ok {
		return nil, errors.NotEligible("接班人角色与槽位需求不符")
	}
	if !profile.IsActiveOn(slot.Date) || !profile.WorksAt(slot.LocationID) {
		return nil, errors.NotEligible("接班人当日不在该科室服务")
	}

	extraFor := e.extraShiftsFunc(ctx)

	e.tracker.Register(toID)
	e.tracker.Release(fromID, slot)
	if err := e.tracker.Reserve(toID, slot, e.limits, extraFor(toID, slot.Date)); err != nil {
		// 恢复原持有人刚释放的预占；同一槽位回填不会失败
		if rerr := e.tracker.Reserve(fromID, slot, e.limits, extraFor(fromID, slot.Date)); rerr != nil {
			e.log.ReserveRejected(fromID.String(), slot.Date, rerr.Error())
		}
		return nil, err
	}

	slot.Unassign(fromID)
	slot.Assign(toID, profile.Role)

	if err := e.slots.Update(ctx, slot); err != nil {
		e.tracker.Release(toID, slot)
		slot.Unassign(toID)
		fromRole := e.roleOf(ctx, fromID)
		if rerr := e.tracker.Reserve(fromID, slot, e.limits, extraFor(fromID, slot.Date)); rerr != nil {
			e.log.ReserveRejected(fromID.String(), slot.Date, rerr.Error())
		}
		slot.Assign(fromID, fromRole)
		return nil, err
	}

	e.log.SwapCommitted(slot.ID.String(), fromID.String(), toID.String())
	e.events.Publish(Event{
		Type: EventSwapCommitted,
		At:   time.Now(),
		Payload: map[string]any{
			"slot_id": slot.ID.String(),
			"from":    fromID.String(),
			"to":      toID.String(),
			"date":    slot.Date,
		},
	})
	return slot, nil
}

// Report 生成某科室某日期范围的工作量分布报告
func (e *Engine) Report(ctx context.Context, locationID uuid.UUID, dr model.DateRange) (*stats.DistributionReport, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	slots, err := e.slots.ListRange(ctx, locationID, dr)
	if err != nil {
		return nil, err
	}
	staff, err := e.staff.ListActive(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return e.analyzer.Analyze(model.MonthOf(dr.StartDate), slots, staff), nil
}

// ClearRange 删除范围内的排班并释放对应工作量
func (e *Engine) ClearRange(ctx context.Context, locationID uuid.UUID, dr model.DateRange) (int, error) {
	if err := dr.Validate(); err != nil {
		return 0, err
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()

	existing, err := e.slots.ListRange(ctx, locationID, dr)
	if err != nil {
		return 0, err
	}
	deleted, err := e.slots.DeleteRange(ctx, locationID, dr)
	if err != nil {
		return 0, errors.PersistenceFailure(err, "delete_slots")
	}
	for _, slot := range existing {
		for _, asg := range slot.Assigned {
			e.tracker.Release(asg.StaffID, slot)
		}
	}
	return deleted, nil
}

func (e *Engine) loadSlot(ctx context.Context, slotID uuid.UUID) (*model.ShiftSlot, error) {
	slot, err := e.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, errors.NotFound("slot", slotID.String())
	}
	return slot, nil
}
