package profile

import (
	"errors"
	"time"
)

var ErrProfileNotFound = errors.New("gamification profile not found")

// Profile is the per-user gamification aggregate. TotalXP is a cached
// running sum of all XP grants for the user and must stay equal to the
// ledger sum; CurrentLevel is always derived from TotalXP.
type Profile struct {
	ID               int        `json:"id"`
	UserID           string     `json:"userId"`
	TotalXP          int64      `json:"totalXp"`
	CurrentLevel     int        `json:"currentLevel"`
	CurrentStreak    int        `json:"currentStreak"`
	LongestStreak    int        `json:"longestStreak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	TotalWorkouts    int        `json:"totalWorkouts"`
	TotalVolume      float64    `json:"totalVolume"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}
