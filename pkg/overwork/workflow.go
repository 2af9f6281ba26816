// Package overwork 提供加班申请工作流（Overwork Request Workflow）
// 状态机：pending -> approved/rejected；approved(temporary) 到期后读作 expired
// 过期在使用时惰性判定，没有后台扫描
package overwork

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// Store 加班申请存储接口
type Store interface {
	Create(ctx context.Context, req *model.OverworkRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.OverworkRequest, error)
	Update(ctx context.Context, req *model.OverworkRequest) error
	ListByStaff(ctx context.Context, staffID uuid.UUID) ([]*model.OverworkRequest, error)
}

// WorkloadReader 工作量查询接口（资格预检使用）
type WorkloadReader interface {
	Snapshot(staffID uuid.UUID, windowKey string) (model.WorkloadWindow, error)
}

// Config 工作流配置
type Config struct {
	// EligibilityMargin 资格预检余量：当前班次数距上限不超过该值才可申请
	EligibilityMargin int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{EligibilityMargin: 3}
}

// Workflow 加班申请工作流
type Workflow struct {
	store  Store
	reader WorkloadReader
	cfg    Config
	now    func() time.Time
	log    *logger.EngineLogger
}

// NewWorkflow 创建加班申请工作流
func NewWorkflow(store Store, reader WorkloadReader, cfg Config) *Workflow {
	return &Workflow{
		store:  store,
		reader: reader,
		cfg:    cfg,
		now:    time.Now,
		log:    logger.NewEngineLogger("overwork"),
	}
}

// SetClock 注入时钟（测试用）
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

// SubmitInput 提交申请的输入
type SubmitInput struct {
	StaffID     uuid.UUID
	ExtraShifts int
	ExtraHours  float64
	Kind        model.OverworkKind
	ExpiresAt   *time.Time
	Reason      string
	Urgency     string
}

// CheckEligibility 资格预检（可在提交前单独调用）
// 满足两个条件才可申请：当前窗口班次数已接近上限（余量内）、没有其他待审批申请
func (w *Workflow) CheckEligibility(ctx context.Context, staffID uuid.UUID, limits model.WorkloadLimits) error {
	windowKey := w.now().Format(model.MonthLayout)
	snapshot, err := w.reader.Snapshot(staffID, windowKey)
	if err != nil {
		return err
	}

	if limits.MaxShiftsPerWindow-snapshot.ShiftCount > w.cfg.EligibilityMargin {
		return errors.NotEligible(fmt.Sprintf(
			"当前班次数 %d 距上限 %d 超出申请余量 %d",
			snapshot.ShiftCount, limits.MaxShiftsPerWindow, w.cfg.EligibilityMargin))
	}

	existing, err := w.store.ListByStaff(ctx, staffID)
	if err != nil {
		return errors.PersistenceFailure(err, "查询加班申请")
	}
	for _, r := range existing {
		if r.Status == model.OverworkPending {
			return errors.NotEligible("已有待审批的加班申请")
		}
	}
	return nil
}

// Submit 提交加班申请，通过资格预检后以 pending 状态落库
func (w *Workflow) Submit(ctx context.Context, in SubmitInput, limits model.WorkloadLimits) (*model.OverworkRequest, error) {
	if in.ExtraShifts <= 0 && in.ExtraHours <= 0 {
		return nil, errors.InvalidInput("extra", "申请量必须大于 0")
	}
	if in.Kind != model.OverworkTemporary && in.Kind != model.OverworkPermanent {
		return nil, errors.InvalidInput("kind", "必须是 temporary 或 permanent")
	}
	if in.Kind == model.OverworkTemporary && in.ExpiresAt == nil {
		return nil, errors.InvalidInput("expires_at", "temporary 申请必须带到期时间")
	}
	if in.Kind == model.OverworkPermanent && in.ExpiresAt != nil {
		return nil, errors.InvalidInput("expires_at", "permanent 申请不能带到期时间")
	}

	if err := w.CheckEligibility(ctx, in.StaffID, limits); err != nil {
		return nil, err
	}

	req := &model.OverworkRequest{
		BaseModel:   model.NewBaseModel(),
		StaffID:     in.StaffID,
		ExtraShifts: in.ExtraShifts,
		ExtraHours:  in.ExtraHours,
		Kind:        in.Kind,
		ExpiresAt:   in.ExpiresAt,
		Reason:      in.Reason,
		Urgency:     in.Urgency,
		Status:      model.OverworkPending,
	}

	if err := w.store.Create(ctx, req); err != nil {
		return nil, errors.PersistenceFailure(err, "创建加班申请")
	}
	return req, nil
}

// Decide 审批加班申请；只有 pending 可流转，终态拒绝再次流转
func (w *Workflow) Decide(ctx context.Context, requestID uuid.UUID, approve bool, decidedBy uuid.UUID) (*model.OverworkRequest, error) {
	req, err := w.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, errors.PersistenceFailure(err, "查询加班申请")
	}
	if req == nil {
		return nil, errors.NotFound("加班申请", requestID.String())
	}
	if req.Status != model.OverworkPending {
		return nil, errors.InvalidTransition(string(req.Status), decidedStatus(approve))
	}

	now := w.now()
	req.DecidedBy = &decidedBy
	req.DecidedAt = &now
	if approve {
		req.Status = model.OverworkApproved
		req.ApprovedAt = &now
	} else {
		req.Status = model.OverworkRejected
	}

	if err := w.store.Update(ctx, req); err != nil {
		return nil, errors.PersistenceFailure(err, "更新加班申请")
	}

	w.log.OverworkDecided(req.ID.String(), string(req.Status))
	return req, nil
}

func decidedStatus(approve bool) string {
	if approve {
		return string(model.OverworkApproved)
	}
	return string(model.OverworkRejected)
}

// Get 读取申请；已过期的临时批准回写为 expired（惰性过期的落库路径）
func (w *Workflow) Get(ctx context.Context, requestID uuid.UUID) (*model.OverworkRequest, error) {
	req, err := w.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, errors.PersistenceFailure(err, "查询加班申请")
	}
	if req == nil {
		return nil, errors.NotFound("加班申请", requestID.String())
	}

	if req.IsExpiredAt(w.now()) {
		req.Status = model.OverworkExpired
		if err := w.store.Update(ctx, req); err != nil {
			return nil, errors.PersistenceFailure(err, "回写过期状态")
		}
	}
	return req, nil
}

// ExtraShiftsFor 返回员工在某日期可用的加班额度
// 排班器和换班器以此作为上限豁免；过期批准视同不存在
func (w *Workflow) ExtraShiftsFor(ctx context.Context, staffID uuid.UUID, date string) (int, error) {
	requests, err := w.store.ListByStaff(ctx, staffID)
	if err != nil {
		return 0, errors.PersistenceFailure(err, "查询加班申请")
	}

	now := w.now()
	extra := 0
	for _, r := range requests {
		if r.CoversDate(date, now) && r.ExtraShifts > extra {
			extra = r.ExtraShifts
		}
	}
	return extra, nil
}

// MemoryStore 内存存储（测试与无持久化部署使用）
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*model.OverworkRequest
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[uuid.UUID]*model.OverworkRequest)}
}

// Create 保存新申请
func (s *MemoryStore) Create(_ context.Context, req *model.OverworkRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

// GetByID 按ID查询
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*model.OverworkRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

// Update 更新申请
func (s *MemoryStore) Update(_ context.Context, req *model.OverworkRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

// ListByStaff 按员工查询全部申请
func (s *MemoryStore) ListByStaff(_ context.Context, staffID uuid.UUID) ([]*model.OverworkRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.OverworkRequest
	for _, r := range s.requests {
		if r.StaffID == staffID {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}
