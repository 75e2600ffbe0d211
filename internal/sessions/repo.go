package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// GetCompleted returns a completed session with its non-skipped exercises
// and their logged sets. Returns ErrSessionNotFound for unknown ids and
// for sessions that were never finished.
func (r *Repo) GetCompleted(ctx context.Context, sessionID string) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.getcompleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var s Session
	err = r.db.QueryRow(
		ctx,
		`SELECT id, user_id, completed_at, total_volume
			FROM workout_session
			WHERE id = $1 AND completed_at IS NOT NULL;`,
		sessionID,
	).Scan(&s.ID, &s.UserID, &s.CompletedAt, &s.TotalVolume)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT e.id, e.exercise_name, s.weight, s.reps
			FROM session_exercise e
			LEFT JOIN session_set s ON s.session_exercise_id = e.id
			WHERE e.session_id = $1 AND NOT e.skipped
			ORDER BY e.id, s.id;`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session exercises: %w", err)
	}
	defer rows.Close()

	byExerciseID := map[int]int{} // exercise row id -> index in s.Exercises
	for rows.Next() {
		var (
			exerciseID int
			name       string
			weight     *float64
			reps       *int
		)
		if err := rows.Scan(&exerciseID, &name, &weight, &reps); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}

		idx, ok := byExerciseID[exerciseID]
		if !ok {
			s.Exercises = append(s.Exercises, LoggedExercise{Name: name})
			idx = len(s.Exercises) - 1
			byExerciseID[exerciseID] = idx
		}

		// exercises without any logged set produce a NULL row from the join
		if weight != nil && reps != nil {
			s.Exercises[idx].Sets = append(s.Exercises[idx].Sets, LoggedSet{
				Weight: *weight,
				Reps:   *reps,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &s, nil
}

// CompletedProgrammesCount returns how many training programmes the user
// has finished, used by the programme_complete achievement criterion.
func (r *Repo) CompletedProgrammesCount(ctx context.Context, userID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.completedprogrammes")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM completed_programme WHERE user_id = $1;`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed programmes: %w", err)
	}

	return count, nil
}
