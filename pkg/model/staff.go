// Package model 定义排班引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// StaffProfile 员工档案
type StaffProfile struct {
	BaseModel
	Name        string      `json:"name" db:"name"`
	Code        string      `json:"code" db:"code"`
	Role        Role        `json:"role" db:"role"`
	LocationIDs []uuid.UUID `json:"location_ids" db:"location_ids"` // 所属科室
	Status      string      `json:"status" db:"status"`             // active/inactive
	HireDate    string      `json:"hire_date" db:"hire_date"`       // YYYY-MM-DD
	LeaveDate   string      `json:"leave_date,omitempty" db:"leave_date"`
}

// IsActive 检查员工是否在职
func (s *StaffProfile) IsActive() bool {
	return s.Status == "active"
}

// IsActiveOn 检查员工在某日期是否处于雇佣期内
func (s *StaffProfile) IsActiveOn(date string) bool {
	if !s.IsActive() {
		return false
	}
	if s.HireDate != "" && date < s.HireDate {
		return false
	}
	if s.LeaveDate != "" && date > s.LeaveDate {
		return false
	}
	return true
}

// WorksAt 检查员工是否属于某科室；未配置科室视为不限
func (s *StaffProfile) WorksAt(locationID uuid.UUID) bool {
	if len(s.LocationIDs) == 0 {
		return true
	}
	for _, id := range s.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}
