// Package emergency defines the domain taxonomy for the authorization pipeline.
package emergency

import "fmt"

// Level is the escalation level of an active emergency. Level 3 is the most
// severe and unlocks the fastest response path.
type Level int

const (
	// Level1 covers routine emergencies handled at normal pace.
	Level1 Level = 1
	// Level2 covers serious emergencies, required for high-value operations.
	Level2 Level = 2
	// Level3 covers critical emergencies needing immediate response.
	Level3 Level = 3
)

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case Level1:
		return "Level1"
	case Level2:
		return "Level2"
	case Level3:
		return "Level3"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid returns true if the level is a known escalation level.
func (l Level) IsValid() bool {
	return l >= Level1 && l <= Level3
}

const (
	// SeverityMin and SeverityMax bound declared severities.
	SeverityMin = 1
	SeverityMax = 10
)

// LevelForSeverity maps a declared severity to its escalation level:
// 1-4 routine, 5-7 serious, 8-10 critical. Severities outside the valid
// range return Level1 and false.
func LevelForSeverity(severity int) (Level, bool) {
	switch {
	case severity >= SeverityMin && severity <= 4:
		return Level1, true
	case severity >= 5 && severity <= 7:
		return Level2, true
	case severity >= 8 && severity <= SeverityMax:
		return Level3, true
	default:
		return Level1, false
	}
}

// RequiredApprovals returns how many distinct guardian approvals an operation
// needs at the given level. Critical emergencies need fewer co-signers so the
// response is not blocked on quorum; routine ones need the full set.
func RequiredApprovals(l Level) int {
	switch l {
	case Level3:
		return 1
	case Level2:
		return 2
	default:
		return 3
	}
}
