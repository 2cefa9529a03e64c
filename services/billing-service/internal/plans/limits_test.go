package plans

import "testing"

func TestLimitsForPlan(t *testing.T) {
	cases := []struct {
		plan        string
		wantPlan    string
		maxBookings int32
	}{
		{"flex", "flex", 30},
		{"resident", "resident", 120},
		{"office", "office", 400},
		{"free", "free", 10},
		{"", "free", 10},
		{"enterprise", "free", 10},
	}
	for _, tc := range cases {
		got := LimitsForPlan(tc.plan)
		if got.Plan != tc.wantPlan {
			t.Errorf("LimitsForPlan(%q).Plan = %q, want %q", tc.plan, got.Plan, tc.wantPlan)
		}
		if got.MaxMonthlyBookings != tc.maxBookings {
			t.Errorf("LimitsForPlan(%q).MaxMonthlyBookings = %d, want %d", tc.plan, got.MaxMonthlyBookings, tc.maxBookings)
		}
	}
}

func TestUnknownPlanFallsBackToFreeCap(t *testing.T) {
	free := LimitsForPlan("free")
	for _, plan := range []string{"", "gold", "FLEX"} {
		if got := LimitsForPlan(plan); got != free {
			t.Errorf("LimitsForPlan(%q) = %+v, want free defaults %+v", plan, got, free)
		}
	}
}
