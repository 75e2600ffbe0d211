package xp

import (
	"errors"
	"time"
)

var ErrDuplicateGrant = errors.New("xp grant already recorded for this source")

// Source says what an XP grant was awarded for.
type Source string

const (
	SourceWorkoutComplete   Source = "workout_complete"
	SourcePRHit             Source = "pr_hit"
	SourceAchievementUnlock Source = "achievement_unlock"
)

// Grant is one immutable entry in the XP ledger. SourceID points at the
// thing that earned it: the session for workout and PR grants, the
// achievement key for unlock bonuses.
type Grant struct {
	ID          int       `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	SourceType  Source    `json:"sourceType"`
	SourceID    string    `json:"sourceId"`
	Description string    `json:"description"`
	GrantedAt   time.Time `json:"grantedAt"`
}
