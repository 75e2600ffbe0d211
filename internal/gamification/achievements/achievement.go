// Package achievements evaluates the static achievement catalog against
// user progress snapshots and records unlocks. Unlocks are permanent;
// re-evaluating an already unlocked achievement is a no-op.
package achievements

import (
	"fmt"
	"time"
)

// CriteriaKind names the progress dimension a criterion is checked
// against.
type CriteriaKind string

const (
	KindStreak            CriteriaKind = "streak"
	KindTotalWorkouts     CriteriaKind = "total_workouts"
	KindTotalVolume       CriteriaKind = "total_volume"
	KindPRCount           CriteriaKind = "pr_count"
	KindProgrammeComplete CriteriaKind = "programme_complete"
)

// Criteria is a single threshold check on one progress dimension.
type Criteria struct {
	Kind      CriteriaKind `json:"kind"`
	Threshold float64      `json:"threshold"`
}

// Snapshot is the user's progress at evaluation time. Criteria only ever
// read it, so one snapshot serves a whole catalog pass.
type Snapshot struct {
	CurrentStreak       int
	TotalWorkouts       int
	TotalVolume         float64
	PRCount             int
	CompletedProgrammes int
}

// SatisfiedBy reports whether the snapshot meets the criterion.
func (c Criteria) SatisfiedBy(s Snapshot) (bool, error) {
	switch c.Kind {
	case KindStreak:
		return float64(s.CurrentStreak) >= c.Threshold, nil
	case KindTotalWorkouts:
		return float64(s.TotalWorkouts) >= c.Threshold, nil
	case KindTotalVolume:
		return s.TotalVolume >= c.Threshold, nil
	case KindPRCount:
		return float64(s.PRCount) >= c.Threshold, nil
	case KindProgrammeComplete:
		return float64(s.CompletedProgrammes) >= c.Threshold, nil
	default:
		return false, fmt.Errorf("unknown criteria kind: %q", c.Kind)
	}
}

// Definition is one catalog entry.
type Definition struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Icon     string   `json:"icon"`
	Criteria Criteria `json:"criteria"`
}

// Unlock is a persisted achievement unlock.
type Unlock struct {
	ID             int       `json:"id"`
	UserID         string    `json:"userId"`
	AchievementKey string    `json:"achievementKey"`
	UnlockedAt     time.Time `json:"unlockedAt"`
}
