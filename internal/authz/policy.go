// Package authz provides the proof authorization service.
//
// This file implements the timeliness policy: how old a bundle may be at
// verification time, graded by emergency level, and how much clock skew is
// tolerated for bundles from machines ahead of ours.
package authz

import (
	"fmt"
	"time"

	"github.com/aegisvault/aegisvault/pkg/emergency"
)

// DefaultMaxFutureSkew bounds how far ahead of the verifier's clock a
// bundle's creation time may sit.
const DefaultMaxFutureSkew = 5 * time.Minute

// maxAgeByLevel grades proof lifetime by escalation: the more urgent the
// emergency, the faster its proofs go stale.
var maxAgeByLevel = map[emergency.Level]time.Duration{
	emergency.Level1: 24 * time.Hour,
	emergency.Level2: 12 * time.Hour,
	emergency.Level3: 6 * time.Hour,
}

// MaxProofAge returns how old a bundle may be for the given emergency
// level. Unknown levels get the strictest window.
func MaxProofAge(level emergency.Level) time.Duration {
	if age, ok := maxAgeByLevel[level]; ok {
		return age
	}
	return maxAgeByLevel[emergency.Level3]
}

// CheckTimeliness rejects bundles created too far in the future or older
// than the policy allows for their level.
func CheckTimeliness(createdAt time.Time, level emergency.Level, now time.Time, maxSkew time.Duration) error {
	if createdAt.After(now.Add(maxSkew)) {
		return fmt.Errorf("%w: created %s, now %s",
			ErrBundleFromFuture,
			createdAt.UTC().Format(time.RFC3339),
			now.UTC().Format(time.RFC3339))
	}
	if age := now.Sub(createdAt); age > MaxProofAge(level) {
		return fmt.Errorf("%w: age %s exceeds %s for %s",
			ErrBundleExpired, age.Round(time.Second), MaxProofAge(level), level)
	}
	return nil
}
