package emergency

import "testing"

func TestLevelForSeverity(t *testing.T) {
	cases := []struct {
		severity int
		want     Level
		ok       bool
	}{
		{1, Level1, true},
		{4, Level1, true},
		{5, Level2, true},
		{7, Level2, true},
		{8, Level3, true},
		{10, Level3, true},
		{0, Level1, false},
		{11, Level1, false},
		{-3, Level1, false},
	}

	for _, tc := range cases {
		got, ok := LevelForSeverity(tc.severity)
		if got != tc.want || ok != tc.ok {
			t.Errorf("LevelForSeverity(%d): got (%s, %v), want (%s, %v)",
				tc.severity, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRequiredApprovals(t *testing.T) {
	if got := RequiredApprovals(Level3); got != 1 {
		t.Errorf("Level3 approvals: got %d, want 1", got)
	}
	if got := RequiredApprovals(Level2); got != 2 {
		t.Errorf("Level2 approvals: got %d, want 2", got)
	}
	if got := RequiredApprovals(Level1); got != 3 {
		t.Errorf("Level1 approvals: got %d, want 3", got)
	}
	if got := RequiredApprovals(Level(0)); got != 3 {
		t.Errorf("unknown level approvals: got %d, want 3", got)
	}
}

func TestLevelIsValid(t *testing.T) {
	for l := Level1; l <= Level3; l++ {
		if !l.IsValid() {
			t.Errorf("Level(%d) should be valid", int(l))
		}
	}
	if Level(0).IsValid() {
		t.Error("Level(0) should be invalid")
	}
	if Level(4).IsValid() {
		t.Error("Level(4) should be invalid")
	}
}
