package model

import (
	"testing"
	"time"
)

func TestOverworkRequestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	expires := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		req  OverworkRequest
		want OverworkStatus
	}{
		{
			name: "待审批",
			req:  OverworkRequest{Status: OverworkPending},
			want: OverworkPending,
		},
		{
			name: "临时批准未过期",
			req:  OverworkRequest{Status: OverworkApproved, Kind: OverworkTemporary, ExpiresAt: &future},
			want: OverworkApproved,
		},
		{
			name: "临时批准已过期读作 expired",
			req:  OverworkRequest{Status: OverworkApproved, Kind: OverworkTemporary, ExpiresAt: &expires},
			want: OverworkExpired,
		},
		{
			name: "长期批准不过期",
			req:  OverworkRequest{Status: OverworkApproved, Kind: OverworkPermanent},
			want: OverworkApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOverworkRequestCoversDate(t *testing.T) {
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	approvedAt := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	expires := time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)

	req := OverworkRequest{
		Status:     OverworkApproved,
		Kind:       OverworkTemporary,
		ApprovedAt: &approvedAt,
		ExpiresAt:  &expires,
	}

	if req.CoversDate("2025-09-09", now) {
		t.Error("批准前的日期不应被覆盖")
	}
	if !req.CoversDate("2025-09-15", now) {
		t.Error("生效期内的日期应被覆盖")
	}
	if req.CoversDate("2025-09-21", now) {
		t.Error("到期后的日期不应被覆盖")
	}

	// 过期后任何日期都不覆盖
	late := expires.Add(time.Hour)
	if req.CoversDate("2025-09-15", late) {
		t.Error("过期的批准不应覆盖任何日期")
	}

	rejected := OverworkRequest{Status: OverworkRejected}
	if rejected.CoversDate("2025-09-15", now) {
		t.Error("被拒绝的申请不应覆盖任何日期")
	}
}

func TestOverworkStatusIsTerminal(t *testing.T) {
	if OverworkPending.IsTerminal() {
		t.Error("pending 不是终态")
	}
	for _, s := range []OverworkStatus{OverworkApproved, OverworkRejected, OverworkExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s 应为终态", s)
		}
	}
}
