package records

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/sessions"
	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type recordsRepo interface {
	CurrentBest(ctx context.Context, userID, exerciseName string, recordType RecordType) (float64, bool, error)
	AddIfBest(ctx context.Context, pr *PersonalRecord) (bool, error)
}

// Detector compares a completed session against the stored bests and
// persists every new personal record it finds.
type Detector struct {
	repo recordsRepo
}

func NewDetector(repo recordsRepo) *Detector {
	return &Detector{
		repo: repo,
	}
}

// Detect scans the session's exercises and returns the PRs achieved in it.
// Skipped exercises and exercises without sets are ignored. A candidate
// must strictly exceed the stored best; matching it is not a new record,
// and a zero value never qualifies.
func (d *Detector) Detect(ctx context.Context, userID string, session *sessions.Session) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.detector.detect")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))
	span.SetAttributes(attribute.String("session.id", session.ID))

	var found []PersonalRecord
	seen := map[string]bool{}
	for _, ex := range session.Exercises {
		if ex.Skipped || len(ex.Sets) == 0 {
			continue
		}
		// an exercise logged twice in one session is judged once,
		// over the union of its sets
		key := strings.ToLower(ex.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates := bestEfforts(session, key)
		for recordType, value := range candidates {
			if value <= 0 {
				continue
			}

			pr, err := d.checkOne(ctx, userID, session, ex.Name, recordType, value)
			if err != nil {
				return nil, err
			}
			if pr != nil {
				found = append(found, *pr)
			}
		}
	}

	span.SetAttributes(attribute.Int("records.found", len(found)))
	return found, nil
}

func (d *Detector) checkOne(
	ctx context.Context,
	userID string,
	session *sessions.Session,
	exerciseName string,
	recordType RecordType,
	value float64,
) (*PersonalRecord, error) {
	best, exists, err := d.repo.CurrentBest(ctx, userID, exerciseName, recordType)
	if err != nil {
		return nil, fmt.Errorf("current best [%s %s]: %w", exerciseName, recordType, err)
	}
	if exists && value <= best {
		return nil, nil
	}

	pr := &PersonalRecord{
		UserID:       userID,
		ExerciseName: exerciseName,
		RecordType:   recordType,
		Value:        value,
		SessionID:    session.ID,
		AchievedAt:   session.CompletedAt,
	}
	if exists {
		prev := best
		pr.PreviousValue = &prev
	}

	inserted, err := d.repo.AddIfBest(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("add record [%s %s]: %w", exerciseName, recordType, err)
	}
	if !inserted {
		// a concurrent completion stored an equal or better value first
		return nil, nil
	}

	return pr, nil
}

// bestEfforts returns the session's best single-set weight, reps and
// volume for one exercise, matched case-insensitively across all its
// occurrences in the session.
func bestEfforts(session *sessions.Session, lowerName string) map[RecordType]float64 {
	best := map[RecordType]float64{
		RecordTypeWeight: 0,
		RecordTypeReps:   0,
		RecordTypeVolume: 0,
	}
	for _, ex := range session.Exercises {
		if ex.Skipped || strings.ToLower(ex.Name) != lowerName {
			continue
		}
		for _, set := range ex.Sets {
			if set.Weight > best[RecordTypeWeight] {
				best[RecordTypeWeight] = set.Weight
			}
			if reps := float64(set.Reps); reps > best[RecordTypeReps] {
				best[RecordTypeReps] = reps
			}
			if vol := set.Weight * float64(set.Reps); vol > best[RecordTypeVolume] {
				best[RecordTypeVolume] = vol
			}
		}
	}
	return best
}
