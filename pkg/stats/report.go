// Package stats 提供排班结果的工作量分布与覆盖率分析
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/model"
)

// StaffStat 单个员工在一次排班结果中的统计
type StaffStat struct {
	StaffID       uuid.UUID  `json:"staff_id"`
	StaffName     string     `json:"staff_name"`
	Role          model.Role `json:"role"`
	ShiftCount    int        `json:"shift_count"`
	TotalHours    float64    `json:"total_hours"`
	NightShifts   int        `json:"night_shifts"`
	WeekendShifts int        `json:"weekend_shifts"`
	Deviation     float64    `json:"deviation"` // 与同角色平均班次数的偏差百分比
}

// ShiftCoverage 单一班次类型的覆盖情况
type ShiftCoverage struct {
	ShiftName string  `json:"shift_name"`
	Required  int     `json:"required"`
	Assigned  int     `json:"assigned"`
	FillRate  float64 `json:"fill_rate"`
}

// DistributionReport 排班分布报告
type DistributionReport struct {
	WindowKey        string                     `json:"window_key"`
	ShiftCountGini   float64                    `json:"shift_count_gini"` // 0=完全均衡, 1=完全不均
	HoursGini        float64                    `json:"hours_gini"`
	NightShiftGini   float64                    `json:"night_shift_gini"`
	AvgShiftsPerHead float64                    `json:"avg_shifts_per_head"`
	MaxShifts        int                        `json:"max_shifts"`
	MinShifts        int                        `json:"min_shifts"`
	FillRate         float64                    `json:"fill_rate"`
	TotalShortfall   int                        `json:"total_shortfall"`
	Coverage         []ShiftCoverage            `json:"coverage"`
	ByRole           map[model.Role][]StaffStat `json:"by_role"`
	BalanceScore     float64                    `json:"balance_score"` // 0-100
}

// Analyzer 排班统计分析器
type Analyzer struct {
	nightAfter int // 夜班判定：开始时刻不早于该小时
}

// NewAnalyzer 创建分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{nightAfter: 21}
}

// Analyze 汇总一批槽位的分配情况
// 只统计 staff 列表中出现的员工，未知分配按 ID 原样计入
func (a *Analyzer) Analyze(windowKey string, slots []*model.ShiftSlot, staff []*model.StaffProfile) *DistributionReport {
	report := &DistributionReport{
		WindowKey:    windowKey,
		ByRole:       make(map[model.Role][]StaffStat),
		BalanceScore: 100,
	}
	if len(slots) == 0 {
		return report
	}

	staffByID := make(map[uuid.UUID]*model.StaffProfile, len(staff))
	for _, s := range staff {
		staffByID[s.ID] = s
	}

	statByID := make(map[uuid.UUID]*StaffStat)
	coverageByName := make(map[string]*ShiftCoverage)

	totalRequired := 0
	totalAssigned := 0
	for _, slot := range slots {
		required := slot.TotalRequired()
		totalRequired += required
		totalAssigned += len(slot.Assigned)

		cov, ok := coverageByName[slot.Definition.Name]
		if !ok {
			cov = &ShiftCoverage{ShiftName: slot.Definition.Name}
			coverageByName[slot.Definition.Name] = cov
		}
		cov.Required += required
		cov.Assigned += len(slot.Assigned)

		night := a.isNightShift(slot.Definition)
		weekend := model.IsWeekend(slot.Date)
		hours := slot.Definition.Hours()

		for _, asg := range slot.Assigned {
			stat, ok := statByID[asg.StaffID]
			if !ok {
				stat = &StaffStat{StaffID: asg.StaffID, Role: asg.Role, StaffName: asg.StaffID.String()}
				if p, exists := staffByID[asg.StaffID]; exists {
					stat.StaffName = p.Name
					stat.Role = p.Role
				}
				statByID[asg.StaffID] = stat
			}
			stat.ShiftCount++
			stat.TotalHours += hours
			if night {
				stat.NightShifts++
			}
			if weekend {
				stat.WeekendShifts++
			}
		}
	}

	report.TotalShortfall = totalRequired - totalAssigned
	if totalRequired > 0 {
		report.FillRate = float64(totalAssigned) / float64(totalRequired)
	}

	for _, cov := range coverageByName {
		if cov.Required > 0 {
			cov.FillRate = float64(cov.Assigned) / float64(cov.Required)
		}
		report.Coverage = append(report.Coverage, *cov)
	}
	sort.Slice(report.Coverage, func(i, j int) bool {
		return report.Coverage[i].ShiftName < report.Coverage[j].ShiftName
	})

	// 角色内公平性独立计算，避免医生和护士的班次基数互相稀释
	counts := make([]float64, 0, len(statByID))
	hoursList := make([]float64, 0, len(statByID))
	nightList := make([]float64, 0, len(statByID))
	report.MinShifts = math.MaxInt32
	for _, stat := range statByID {
		counts = append(counts, float64(stat.ShiftCount))
		hoursList = append(hoursList, stat.TotalHours)
		nightList = append(nightList, float64(stat.NightShifts))
		if stat.ShiftCount > report.MaxShifts {
			report.MaxShifts = stat.ShiftCount
		}
		if stat.ShiftCount < report.MinShifts {
			report.MinShifts = stat.ShiftCount
		}
		report.ByRole[stat.Role] = append(report.ByRole[stat.Role], *stat)
	}
	if len(statByID) == 0 {
		report.MinShifts = 0
		return report
	}

	report.AvgShiftsPerHead = mean(counts)
	report.ShiftCountGini = gini(counts)
	report.HoursGini = gini(hoursList)
	report.NightShiftGini = gini(nightList)

	for role, stats := range report.ByRole {
		roleCounts := make([]float64, len(stats))
		for i, s := range stats {
			roleCounts[i] = float64(s.ShiftCount)
		}
		roleAvg := mean(roleCounts)
		for i := range stats {
			if roleAvg > 0 {
				stats[i].Deviation = (float64(stats[i].ShiftCount) - roleAvg) / roleAvg * 100
			}
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].ShiftCount != stats[j].ShiftCount {
				return stats[i].ShiftCount > stats[j].ShiftCount
			}
			return stats[i].StaffName < stats[j].StaffName
		})
		report.ByRole[role] = stats
	}

	report.BalanceScore = a.balanceScore(report)
	return report
}

// isNightShift 开始时刻晚于夜班线或跨天的班次算夜班
func (a *Analyzer) isNightShift(def model.ShiftDefinition) bool {
	start, err := time.Parse(model.ClockLayout, def.StartTime)
	if err != nil {
		return false
	}
	if start.Hour() >= a.nightAfter {
		return true
	}
	return strings.Compare(def.EndTime, def.StartTime) <= 0 // 跨天
}

// balanceScore 加权综合评分：班次均衡 50%、夜班均衡 30%、覆盖率 20%
func (a *Analyzer) balanceScore(r *DistributionReport) float64 {
	score := 0.5*(1-r.ShiftCountGini)*100 +
		0.3*(1-r.NightShiftGini)*100 +
		0.2*r.FillRate*100
	return math.Max(0, math.Min(100, score))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// gini 基尼系数，输入会被复制后排序
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	return math.Max(0, math.Min(1, g/(float64(n)*sum)))
}
