package records

import "time"

// RecordType is the metric a personal record is tracked for.
type RecordType string

const (
	RecordTypeWeight RecordType = "weight"
	RecordTypeReps   RecordType = "reps"
	// RecordTypeVolume is the best single-set volume (weight x reps),
	// not the summed volume of a whole session
	RecordTypeVolume RecordType = "volume"
)

// PersonalRecord is one append-only entry in the PR history of a
// (user, exercise, record type) triple. Rows are never updated or
// deleted; the current best is the one with the highest value.
type PersonalRecord struct {
	ID            int        `json:"id"`
	UserID        string     `json:"userId"`
	ExerciseName  string     `json:"exerciseName"`
	RecordType    RecordType `json:"recordType"`
	Value         float64    `json:"value"`
	PreviousValue *float64   `json:"previousValue,omitempty"`
	SessionID     string     `json:"sessionId"`
	AchievedAt    time.Time  `json:"achievedAt"`
}
