// Package model 定义排班引擎的核心数据模型
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role 医院岗位角色
type Role string

const (
	RoleDokter     Role = "DOKTER"     // 医生
	RolePerawat    Role = "PERAWAT"    // 护士
	RoleStaf       Role = "STAF"       // 普通职员
	RoleSupervisor Role = "SUPERVISOR" // 主管
)

// Valid 检查角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleDokter, RolePerawat, RoleStaf, RoleSupervisor:
		return true
	}
	return false
}

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// Validate 检查日期范围格式与顺序
func (dr DateRange) Validate() error {
	start, err := time.Parse(DateLayout, dr.StartDate)
	if err != nil {
		return err
	}
	end, err := time.Parse(DateLayout, dr.EndDate)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return ErrDateRangeReversed
	}
	return nil
}

// Days 按时间顺序返回范围内的所有日期
func (dr DateRange) Days() []string {
	start, err1 := time.Parse(DateLayout, dr.StartDate)
	end, err2 := time.Parse(DateLayout, dr.EndDate)
	if err1 != nil || err2 != nil {
		return nil
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

// Contains 检查日期是否在范围内
func (dr DateRange) Contains(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// 日期与时间格式
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	MonthLayout = "2006-01"
)

// ErrDateRangeReversed 结束日期早于开始日期
var ErrDateRangeReversed = errors.New("结束日期早于开始日期")

// MonthOf 返回日期所在月份（YYYY-MM）
func MonthOf(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// NextDate 返回后一天日期
func NextDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(DateLayout)
}

// PrevDate 返回前一天日期
func PrevDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// WeekdayOf 返回日期对应的星期
func WeekdayOf(date string) time.Weekday {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Sunday
	}
	return t.Weekday()
}

// IsWeekend 检查日期是否为周末
func IsWeekend(date string) bool {
	wd := WeekdayOf(date)
	return wd == time.Saturday || wd == time.Sunday
}
