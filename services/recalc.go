// services/recalc.go
package services

import (
	"quest-tracking-system/models"
)

// ComputeProgress derives the ledger percentage from the quest's current
// challenge membership. Integer division on purpose: 2 of 3 challenges is
// 66, not 67. A quest with no challenges is always 0.
func ComputeProgress(totalChallenges, completedChallenges int64) int {
	if totalChallenges <= 0 {
		return 0
	}
	return int(completedChallenges * 100 / totalChallenges)
}

// NextStatus returns the status the ledger should move to given a freshly
// computed percentage. Pure; callers decide whether to persist.
//
// Rules:
//   - completed only from not_started/in_progress at 100%
//   - not_started promotes to in_progress as soon as progress is non-zero
//   - abandoned and expired are never auto-promoted here; only explicit
//     quest reactivation (or a user resume action) moves out of abandoned
//   - completed never regresses, even if the challenge set later grows
func NextStatus(current models.ProgressStatus, progress int) models.ProgressStatus {
	switch current {
	case models.StatusNotStarted, models.StatusInProgress:
		if progress >= 100 {
			return models.StatusCompleted
		}
		if progress > 0 {
			return models.StatusInProgress
		}
		return current
	default:
		// completed, abandoned, expired: unchanged
		return current
	}
}
