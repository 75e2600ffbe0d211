// Package sessions reads completed workout sessions, the input of the
// gamification engine. Sessions themselves (scheduling, templates,
// editing) are owned by the main workout service; this package only
// exposes what the engine needs.
package sessions

import (
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("workout session not found")

type LoggedSet struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

type LoggedExercise struct {
	Name    string      `json:"name"`
	Skipped bool        `json:"skipped"`
	Sets    []LoggedSet `json:"sets"`
}

type Session struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	CompletedAt time.Time        `json:"completedAt"`
	TotalVolume float64          `json:"totalVolume"`
	Exercises   []LoggedExercise `json:"exercises"`
}
