// Package swap 提供换班伙伴匹配（Smart Swap Matcher）
// 只产出排序后的候选序列，不落地换班；提交由调用方在单个事务边界内
// 通过 Workload Tracker 的 Release+Reserve 完成
package swap

import (
	"sort"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/workload"
)

// ExtraShiftsFunc 查询员工在某日期可用的加班额度
type ExtraShiftsFunc func(staffID uuid.UUID, date string) int

// Candidate 换班候选（派生数据，不持久化）
type Candidate struct {
	Staff       *model.StaffProfile `json:"staff"`
	Score       float64             `json:"score"`
	Headroom    int                 `json:"headroom"`     // 上限减当前班次数
	Streak      int                 `json:"streak"`       // 当前连续工作天数
	AltFeasible bool                `json:"alt_feasible"` // 换日场景下替代日期是否可行
	Rank        int                 `json:"rank"`
}

// Matcher 换班匹配器
type Matcher struct {
	tracker  *workload.Tracker
	extraFor ExtraShiftsFunc
	log      *logger.EngineLogger
}

// NewMatcher 创建换班匹配器
func NewMatcher(tracker *workload.Tracker, extraFor ExtraShiftsFunc) *Matcher {
	if extraFor == nil {
		extraFor = func(uuid.UUID, string) int { return 0 }
	}
	return &Matcher{
		tracker:  tracker,
		extraFor: extraFor,
		log:      logger.NewEngineLogger("swap"),
	}
}

// FindPartners 为某槽位寻找可接班的候选员工，按匹配度降序
// targetDate 为空表示按槽位原日期接班；不为空表示换到替代日期
func (m *Matcher) FindPartners(slot *model.ShiftSlot, requesterID uuid.UUID, targetDate string, staff []*model.StaffProfile, limits model.WorkloadLimits) ([]Candidate, error) {
	if slot == nil {
		return nil, errors.InvalidInput("slot", "不能为空")
	}
	if !slot.HasStaff(requesterID) {
		return nil, errors.InvalidInput("requester", "发起人未持有该槽位的分配")
	}

	effectiveDate := slot.Date
	if targetDate != "" {
		effectiveDate = targetDate
	}
	effectiveRange := slot.Definition.TimeRangeOn(effectiveDate)
	windowKey := model.MonthOf(effectiveDate)

	requiredRoles := make(map[model.Role]bool, len(slot.Required))
	for r := range slot.Required {
		requiredRoles[r] = true
	}

	var candidates []Candidate
	for _, s := range staff {
		if s.ID == requesterID {
			continue
		}
		if !requiredRoles[s.Role] {
			continue
		}
		if !s.IsActiveOn(effectiveDate) {
			continue
		}
		// 目标日期已有时间重叠的班次，直接排除
		if m.tracker.HasOverlapOn(s.ID, effectiveRange) {
			continue
		}

		snapshot, err := m.tracker.Snapshot(s.ID, windowKey)
		if err != nil {
			continue
		}

		ceiling := limits.MaxShiftsPerWindow + m.extraFor(s.ID, effectiveDate)
		headroom := ceiling - snapshot.ShiftCount
		if headroom <= 0 {
			continue // 工作量不合格
		}

		c := Candidate{
			Staff:    s,
			Headroom: headroom,
			Streak:   snapshot.Streak,
		}

		// 余量越大、越"新鲜"（连续天数少）得分越高
		c.Score = float64(headroom)*10 + 10/float64(1+snapshot.Streak)

		// 换日场景：评估替代日期的可行性
		if targetDate != "" && targetDate != slot.Date {
			c.AltFeasible = m.tracker.ProjectedRun(s.ID, targetDate) <= limits.MaxConsecutiveDays
			if c.AltFeasible {
				c.Score += 10
			}
		}

		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Staff.ID.String() < candidates[j].Staff.ID.String()
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return candidates, nil
}
