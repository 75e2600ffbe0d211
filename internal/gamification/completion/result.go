// Package completion orchestrates what happens when a workout session is
// completed: PR detection, streak advance, XP awards and achievement
// evaluation, folded into a single result for the client.
package completion

import (
	"errors"

	"github.com/liftlog/gamify/internal/gamification/records"
)

// ErrAlreadyProcessed marks a session whose completion rewards were
// already granted. Retries surface the original result instead of
// awarding twice.
var ErrAlreadyProcessed = errors.New("session completion already processed")

// XPBreakdown explains how the workout XP was computed. Total is the
// displayed amount; the ledger splits it into a workout grant and one
// grant per PR so that the grants still sum to it.
type XPBreakdown struct {
	Base             float64 `json:"base"`
	PRBonus          float64 `json:"prBonus"`
	StreakMultiplier float64 `json:"streakMultiplier"`
	Total            int64   `json:"total"`
}

// StreakInfo is the user's streak after this completion.
type StreakInfo struct {
	Current  int  `json:"current"`
	Longest  int  `json:"longest"`
	Extended bool `json:"extended"`
}

// Result is everything a completion earned, shaped for the client's
// celebration screen.
type Result struct {
	SessionID       string                   `json:"sessionId"`
	UserID          string                   `json:"userId"`
	XPEarned        int64                    `json:"xpEarned"`
	XPBreakdown     XPBreakdown              `json:"xpBreakdown"`
	TotalXP         int64                    `json:"totalXp"`
	NewPRs          []records.PersonalRecord `json:"newPrs"`
	NewAchievements []string                 `json:"newAchievements"`
	PreviousLevel   int                      `json:"previousLevel"`
	NewLevel        int                      `json:"newLevel"`
	NewLevelName    string                   `json:"newLevelName"`
	LeveledUp       bool                     `json:"leveledUp"`
	Streak          StreakInfo               `json:"streak"`
}
