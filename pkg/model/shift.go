// Package model 定义排班引擎的核心数据模型
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Location 科室/院区
type Location struct {
	BaseModel
	Name    string             `json:"name" db:"name"`
	Code    string             `json:"code" db:"code"`
	Configs []*ShiftTypeConfig `json:"configs,omitempty" db:"-"`
}

// ShiftTypeConfig 班型配置（如三班倒、工作日白班）
// Weekdays 为空表示每天都适用
type ShiftTypeConfig struct {
	BaseModel
	LocationID  uuid.UUID          `json:"location_id" db:"location_id"`
	Name        string             `json:"name" db:"name"`
	Weekdays    []time.Weekday     `json:"weekdays" db:"weekdays"`
	Definitions []*ShiftDefinition `json:"definitions" db:"-"`
}

// AppliesTo 检查班型配置是否适用于某星期
func (c *ShiftTypeConfig) AppliesTo(wd time.Weekday) bool {
	if len(c.Weekdays) == 0 {
		return true
	}
	for _, w := range c.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// ShiftDefinition 班次定义
type ShiftDefinition struct {
	Name      string       `json:"name" db:"name"`             // 如 PAGI/SIANG/MALAM
	StartTime string       `json:"start_time" db:"start_time"` // HH:MM
	EndTime   string       `json:"end_time" db:"end_time"`     // HH:MM
	Headcount map[Role]int `json:"headcount" db:"headcount"`   // 各角色需求人数
}

// TotalHeadcount 返回班次总需求人数
func (d *ShiftDefinition) TotalHeadcount() int {
	total := 0
	for _, n := range d.Headcount {
		total += n
	}
	return total
}

// Roles 按固定顺序返回班次涉及的角色
func (d *ShiftDefinition) Roles() []Role {
	roles := make([]Role, 0, len(d.Headcount))
	for r := range d.Headcount {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// TimeRangeOn 返回班次在指定日期的起止时间
// 结束时间不晚于开始时间视为跨日班次
func (d *ShiftDefinition) TimeRangeOn(date string) TimeRange {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return TimeRange{}
	}
	start := clockOnDate(day, d.StartTime)
	end := clockOnDate(day, d.EndTime)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return TimeRange{Start: start, End: end}
}

// Hours 返回班次时长（小时）
func (d *ShiftDefinition) Hours() float64 {
	tr := d.TimeRangeOn("2000-01-01")
	return tr.Duration().Hours()
}

// clockOnDate 在指定日期解析 HH:MM
func clockOnDate(day time.Time, clock string) time.Time {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

// ShiftSlot 排班槽位：某科室某日期某班次的具体用人需求
type ShiftSlot struct {
	BaseModel
	LocationID uuid.UUID       `json:"location_id" db:"location_id"`
	Date       string          `json:"date" db:"date"` // YYYY-MM-DD
	Definition ShiftDefinition `json:"definition" db:"-"`
	Required   map[Role]int    `json:"required" db:"required"`       // 经倍率调整后的需求人数
	Assigned   []Assignment    `json:"assigned" db:"-"`              // 已分配人员
	Version    int             `json:"version" db:"version"`         // 乐观锁版本号
	ConfigName string          `json:"config_name" db:"config_name"` // 来源班型配置
}

// Assignment 槽位内的单个分配
type Assignment struct {
	StaffID uuid.UUID `json:"staff_id" db:"staff_id"`
	Role    Role      `json:"role" db:"role"`
}

// Key 返回槽位的 (日期, 班次) 标识
func (s *ShiftSlot) Key() string {
	return fmt.Sprintf("%s/%s", s.Date, s.Definition.Name)
}

// TimeRange 返回槽位的起止时间
func (s *ShiftSlot) TimeRange() TimeRange {
	return s.Definition.TimeRangeOn(s.Date)
}

// Hours 返回槽位时长（小时）
func (s *ShiftSlot) Hours() float64 {
	return s.TimeRange().Duration().Hours()
}

// TotalRequired 返回槽位总需求人数
func (s *ShiftSlot) TotalRequired() int {
	total := 0
	for _, n := range s.Required {
		total += n
	}
	return total
}

// AssignedCount 返回某角色已分配人数
func (s *ShiftSlot) AssignedCount(role Role) int {
	count := 0
	for _, a := range s.Assigned {
		if a.Role == role {
			count++
		}
	}
	return count
}

// HasStaff 检查槽位是否已分配某员工
func (s *ShiftSlot) HasStaff(staffID uuid.UUID) bool {
	for _, a := range s.Assigned {
		if a.StaffID == staffID {
			return true
		}
	}
	return false
}

// Assign 向槽位添加分配
func (s *ShiftSlot) Assign(staffID uuid.UUID, role Role) {
	s.Assigned = append(s.Assigned, Assignment{StaffID: staffID, Role: role})
}

// Unassign 从槽位移除分配；员工不在槽位时为空操作
func (s *ShiftSlot) Unassign(staffID uuid.UUID) bool {
	for i, a := range s.Assigned {
		if a.StaffID == staffID {
			s.Assigned = append(s.Assigned[:i], s.Assigned[i+1:]...)
			return true
		}
	}
	return false
}
