// Package xp keeps the append-only XP ledger and maps accumulated XP
// to levels. Profile totals are a projection of the ledger; summing a
// user's grants must always reproduce their total.
package xp

import (
	"errors"
	"fmt"
	"sort"
)

// Level is one rung of the progression ladder. A user is at the highest
// level whose MinXP they have reached.
type Level struct {
	MinXP int64  `json:"minXp"`
	Name  string `json:"name"`
}

// Resolver answers "which level is this XP total" via binary search over
// an ascending threshold table. Immutable after construction.
type Resolver struct {
	levels []Level
}

func NewResolver(levels []Level) (*Resolver, error) {
	if len(levels) == 0 {
		return nil, errors.New("no levels given")
	}
	if levels[0].MinXP != 0 {
		return nil, fmt.Errorf("first level must start at 0 XP, got %d", levels[0].MinXP)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].MinXP <= levels[i-1].MinXP {
			return nil, fmt.Errorf(
				"level thresholds must be strictly ascending, got %d after %d",
				levels[i].MinXP, levels[i-1].MinXP,
			)
		}
	}

	return &Resolver{
		levels: append([]Level(nil), levels...),
	}, nil
}

// LevelForXP returns the 1-based level for the given total. Negative
// totals are clamped to level 1.
func (r *Resolver) LevelForXP(totalXP int64) int {
	// first index whose threshold exceeds the total
	idx := sort.Search(len(r.levels), func(i int) bool {
		return r.levels[i].MinXP > totalXP
	})
	if idx == 0 {
		return 1
	}
	return idx
}

func (r *Resolver) LevelName(level int) string {
	if level < 1 || level > len(r.levels) {
		return ""
	}
	return r.levels[level-1].Name
}

// NextLevelXP returns the threshold of the level after the given one,
// and false when the user is already at the top.
func (r *Resolver) NextLevelXP(level int) (int64, bool) {
	if level < 1 || level >= len(r.levels) {
		return 0, false
	}
	return r.levels[level].MinXP, true
}

func (r *Resolver) Levels() []Level {
	return append([]Level(nil), r.levels...)
}

// MultiplierCurve turns a streak length into an XP multiplier. The factor
// grows linearly with each consecutive day and is capped at Max. Day one
// is always factor 1.
type MultiplierCurve struct {
	Step float64
	Max  float64
}

func (c MultiplierCurve) Factor(streakDays int) float64 {
	if streakDays <= 1 {
		return 1
	}
	factor := 1 + c.Step*float64(streakDays-1)
	if factor > c.Max {
		return c.Max
	}
	return factor
}
