// Package model 定义排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// OverworkStatus 加班申请状态
type OverworkStatus string

const (
	OverworkPending  OverworkStatus = "pending"
	OverworkApproved OverworkStatus = "approved"
	OverworkRejected OverworkStatus = "rejected"
	OverworkExpired  OverworkStatus = "expired"
)

// IsTerminal 检查状态是否为终态
func (s OverworkStatus) IsTerminal() bool {
	return s == OverworkApproved || s == OverworkRejected || s == OverworkExpired
}

// OverworkKind 加班时效类型
type OverworkKind string

const (
	OverworkTemporary OverworkKind = "temporary" // 临时，带明确到期时间
	OverworkPermanent OverworkKind = "permanent" // 长期，无到期时间
)

// OverworkRequest 加班申请：员工申请突破正常工作量上限
// 只做状态流转，不做物理删除（审计留痕）
type OverworkRequest struct {
	BaseModel
	StaffID     uuid.UUID      `json:"staff_id" db:"staff_id"`
	ExtraShifts int            `json:"extra_shifts" db:"extra_shifts"` // 申请额外班次数
	ExtraHours  float64        `json:"extra_hours" db:"extra_hours"`   // 申请额外工时
	Kind        OverworkKind   `json:"kind" db:"kind"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" db:"expires_at"` // temporary 必填
	Reason      string         `json:"reason" db:"reason"`
	Urgency     string         `json:"urgency" db:"urgency"` // low/normal/high
	Status      OverworkStatus `json:"status" db:"status"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	DecidedBy   *uuid.UUID     `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty" db:"decided_at"`
}

// IsExpiredAt 检查临时批准是否已过期（按 now 惰性判定）
func (r *OverworkRequest) IsExpiredAt(now time.Time) bool {
	return r.Status == OverworkApproved &&
		r.Kind == OverworkTemporary &&
		r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// EffectiveStatus 返回惰性求值后的状态：已过期的临时批准读作 expired
func (r *OverworkRequest) EffectiveStatus(now time.Time) OverworkStatus {
	if r.IsExpiredAt(now) {
		return OverworkExpired
	}
	return r.Status
}

// CoversDate 检查批准是否覆盖某日期
// 生效期从批准时刻起，temporary 到 ExpiresAt 止，permanent 无界
func (r *OverworkRequest) CoversDate(date string, now time.Time) bool {
	if r.EffectiveStatus(now) != OverworkApproved {
		return false
	}
	if r.ApprovedAt != nil && date < r.ApprovedAt.Format(DateLayout) {
		return false
	}
	if r.Kind == OverworkTemporary && r.ExpiresAt != nil {
		if date > r.ExpiresAt.Format(DateLayout) {
			return false
		}
	}
	return true
}
