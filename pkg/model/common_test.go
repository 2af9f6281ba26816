package model

import (
	"testing"
	"time"
)

func TestDateRangeDays(t *testing.T) {
	dr := DateRange{StartDate: "2025-09-28", EndDate: "2025-10-02"}
	days := dr.Days()
	want := []string{"2025-09-28", "2025-09-29", "2025-09-30", "2025-10-01", "2025-10-02"}

	if len(days) != len(want) {
		t.Fatalf("Days() 返回 %d 天, want %d", len(days), len(want))
	}
	for i, d := range want {
		if days[i] != d {
			t.Errorf("Days()[%d] = %s, want %s", i, days[i], d)
		}
	}
}

func TestDateRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		dr      DateRange
		wantErr bool
	}{
		{"正常范围", DateRange{"2025-09-01", "2025-09-30"}, false},
		{"单日范围", DateRange{"2025-09-01", "2025-09-01"}, false},
		{"倒序范围", DateRange{"2025-09-30", "2025-09-01"}, true},
		{"格式错误", DateRange{"2025/09/01", "2025-09-30"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeRangeOverlaps(t *testing.T) {
	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	a := TimeRange{Start: base, End: base.Add(8 * time.Hour)}

	tests := []struct {
		name string
		b    TimeRange
		want bool
	}{
		{"完全重叠", a, true},
		{"部分重叠", TimeRange{Start: base.Add(4 * time.Hour), End: base.Add(12 * time.Hour)}, true},
		{"首尾相接不算重叠", TimeRange{Start: base.Add(8 * time.Hour), End: base.Add(16 * time.Hour)}, false},
		{"完全分离", TimeRange{Start: base.Add(10 * time.Hour), End: base.Add(12 * time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWeekend(t *testing.T) {
	// 2025-09-06 周六, 2025-09-07 周日, 2025-09-08 周一
	if !IsWeekend("2025-09-06") || !IsWeekend("2025-09-07") {
		t.Error("周六周日应判定为周末")
	}
	if IsWeekend("2025-09-08") {
		t.Error("周一不应判定为周末")
	}
}

func TestMonthOf(t *testing.T) {
	if got := MonthOf("2025-09-15"); got != "2025-09" {
		t.Errorf("MonthOf() = %s, want 2025-09", got)
	}
}
