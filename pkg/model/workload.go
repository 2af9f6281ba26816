// Package model 定义排班引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// WorkloadWindow 员工在某窗口（自然月）内的工作量汇总
// 随分配增删实时维护，不在热路径上从头重算
type WorkloadWindow struct {
	StaffID        uuid.UUID `json:"staff_id" db:"staff_id"`
	WindowKey      string    `json:"window_key" db:"window_key"` // YYYY-MM
	ShiftCount     int       `json:"shift_count" db:"shift_count"`
	TotalHours     float64   `json:"total_hours" db:"total_hours"`
	Streak         int       `json:"streak" db:"streak"`                     // 当前连续工作天数
	LastWorkedDate string    `json:"last_worked_date" db:"last_worked_date"` // YYYY-MM-DD
}

// WorkloadLimits 工作量硬上限
type WorkloadLimits struct {
	MaxShiftsPerWindow int `json:"max_shifts_per_window"` // 每窗口最大班次数
	MaxConsecutiveDays int `json:"max_consecutive_days"`  // 最大连续工作天数
}

// DefaultWorkloadLimits 返回默认上限
func DefaultWorkloadLimits() WorkloadLimits {
	return WorkloadLimits{
		MaxShiftsPerWindow: 18,
		MaxConsecutiveDays: 6,
	}
}

// Validate 检查上限配置是否合法
func (l WorkloadLimits) Validate() bool {
	return l.MaxShiftsPerWindow > 0 && l.MaxConsecutiveDays > 0
}
