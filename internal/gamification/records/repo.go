package records

import (
	"context"
	"fmt"

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

// CurrentBest returns the user's best recorded value for the given exercise
// (case-insensitive) and record type. The bool is false when no record
// exists yet, in which case the baseline is 0.
func (r *Repo) CurrentBest(
	ctx context.Context,
	userID, exerciseName string,
	recordType RecordType,
) (_ float64, _ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.currentbest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.name", exerciseName))
	span.SetAttributes(attribute.String("record.type", string(recordType)))

	var best *float64
	err = r.db.QueryRow(
		ctx,
		`SELECT MAX(value) FROM personal_record
			WHERE user_id = $1 AND lower(exercise_name) = lower($2) AND record_type = $3;`,
		userID, exerciseName, recordType,
	).Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("query current best: %w", err)
	}
	if best == nil {
		return 0, false, nil
	}

	return *best, true, nil
}

// AddIfBest inserts a new PR row only if the value still strictly exceeds
// every stored value for the same user/exercise/type. The guard is part of
// the INSERT statement, so two racing detections cannot both insert a
// record for the same value.
func (r *Repo) AddIfBest(ctx context.Context, pr *PersonalRecord) (inserted bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.addifbest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO personal_record
				(user_id, exercise_name, record_type, value, previous_value, session_id, achieved_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (
				SELECT 1 FROM personal_record
					WHERE user_id = $1 AND lower(exercise_name) = lower($2)
						AND record_type = $3 AND value >= $4
			)
			RETURNING id;`,
		pr.UserID, pr.ExerciseName, pr.RecordType, pr.Value, pr.PreviousValue, pr.SessionID, pr.AchievedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert personal record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		// beaten by a concurrent insert with an equal or higher value
		return false, rows.Err()
	}

	if err := rows.Scan(&pr.ID); err != nil {
		return false, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("record.id", pr.ID))
	return true, nil
}

// CountForUser returns the total number of PR rows ever recorded for the
// user, used by the pr_count achievement criterion.
func (r *Repo) CountForUser(ctx context.Context, userID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.countforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM personal_record WHERE user_id = $1;`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count personal records: %w", err)
	}

	return count, nil
}

// CurrentBests returns the authoritative current PR per exercise and record
// type. Selection is by highest value (ties broken by recency), not by
// insert order alone.
func (r *Repo) CurrentBests(ctx context.Context, userID string) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.currentbests")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT ON (lower(exercise_name), record_type)
				id, user_id, exercise_name, record_type, value, previous_value, session_id, achieved_at
			FROM personal_record
			WHERE user_id = $1
			ORDER BY lower(exercise_name), record_type, value DESC, achieved_at DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query current bests: %w", err)
	}
	defer rows.Close()

	var prs []PersonalRecord
	for rows.Next() {
		var pr PersonalRecord
		if err := rows.Scan(
			&pr.ID, &pr.UserID, &pr.ExerciseName, &pr.RecordType,
			&pr.Value, &pr.PreviousValue, &pr.SessionID, &pr.AchievedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return prs, nil
}

// History returns all PR rows for one exercise and type, newest first.
func (r *Repo) History(
	ctx context.Context,
	userID, exerciseName string,
	recordType RecordType,
) (_ []PersonalRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, exercise_name, record_type, value, previous_value, session_id, achieved_at
			FROM personal_record
			WHERE user_id = $1 AND lower(exercise_name) = lower($2) AND record_type = $3
			ORDER BY achieved_at DESC, id DESC;`,
		userID, exerciseName, recordType,
	)
	if err != nil {
		return nil, fmt.Errorf("query record history: %w", err)
	}
	defer rows.Close()

	var prs []PersonalRecord
	for rows.Next() {
		var pr PersonalRecord
		if err := rows.Scan(
			&pr.ID, &pr.UserID, &pr.ExerciseName, &pr.RecordType,
			&pr.Value, &pr.PreviousValue, &pr.SessionID, &pr.AchievedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return prs, nil
}
