// Package calendar 提供班型日历展开（Pattern Resolver）
package calendar

import (
	"math"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// Multipliers 按需求人数倍率调整的配置表（调用方提供，不做硬编码）
// 键为班次名称，值为该班次在工作日/周末的倍率；缺省倍率为 1
type Multipliers struct {
	Weekday map[string]float64 `json:"weekday,omitempty"`
	Weekend map[string]float64 `json:"weekend,omitempty"`
}

// factorFor 返回某班次在某日期的倍率
func (m *Multipliers) factorFor(shiftName, date string) float64 {
	if m == nil {
		return 1
	}
	table := m.Weekday
	if model.IsWeekend(date) {
		table = m.Weekend
	}
	if table == nil {
		return 1
	}
	if f, ok := table[shiftName]; ok && f > 0 {
		return f
	}
	return 1
}

// Resolver 班型展开器：把科室的班型配置展开为具体日期的排班槽位
// 无跨调用状态，可对任意子区间独立调用
type Resolver struct {
	log *logger.EngineLogger
}

// NewResolver 创建班型展开器
func NewResolver() *Resolver {
	return &Resolver{log: logger.NewEngineLogger("calendar")}
}

// Resolve 展开日期范围内的全部排班槽位（未分配，按时间顺序）
// 某日期无适用班型则该日期不产出槽位，不视为错误
func (r *Resolver) Resolve(location *model.Location, dateRange model.DateRange, multipliers *Multipliers) ([]*model.ShiftSlot, error) {
	if location == nil {
		return nil, errors.InvalidInput("location", "不能为空")
	}
	if err := dateRange.Validate(); err != nil {
		return nil, errors.InvalidInput("date_range", err.Error())
	}

	var slots []*model.ShiftSlot
	for _, date := range dateRange.Days() {
		wd := model.WeekdayOf(date)
		for _, cfg := range location.Configs {
			if !cfg.AppliesTo(wd) {
				continue
			}
			for _, def := range cfg.Definitions {
				slots = append(slots, r.instantiate(location.ID, cfg.Name, date, def, multipliers))
			}
		}
	}

	r.log.SlotsResolved(location.ID.String(), dateRange.StartDate, dateRange.EndDate, len(slots))
	return slots, nil
}

// instantiate 由班次定义生成一个具体槽位
// 倍率调整始终向上取整，避免因舍入造成覆盖不足
func (r *Resolver) instantiate(locationID uuid.UUID, configName, date string, def *model.ShiftDefinition, multipliers *Multipliers) *model.ShiftSlot {
	factor := multipliers.factorFor(def.Name, date)

	required := make(map[model.Role]int, len(def.Headcount))
	for role, n := range def.Headcount {
		scaled := int(math.Ceil(float64(n) * factor))
		if scaled < 0 {
			scaled = 0
		}
		required[role] = scaled
	}

	return &model.ShiftSlot{
		BaseModel:  model.NewBaseModel(),
		LocationID: locationID,
		Date:       date,
		Definition: *def,
		Required:   required,
		ConfigName: configName,
		Version:    1,
	}
}
