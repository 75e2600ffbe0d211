package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/gamification/streak"
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

// Ensure returns the profile for the given user, creating a zero-valued
// one first if none exists yet. Safe to call repeatedly and concurrently.
func (r *Repo) Ensure(ctx context.Context, userID string) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.ensure")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO gamification_profile (user_id, created_at, updated_at)
			VALUES ($1, now(), now())
			ON CONFLICT (user_id) DO NOTHING;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	return r.Get(ctx, userID)
}

func (r *Repo) Get(ctx context.Context, userID string) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return scanProfile(r.db.QueryRow(
		ctx,
		`SELECT id, user_id, total_xp, current_level, current_streak, longest_streak,
				last_activity_date, total_workouts, total_volume, created_at, updated_at
			FROM gamification_profile WHERE user_id = $1;`,
		userID,
	))
}

// ApplyXPGrant adds the given amount to the user's total XP and recomputes
// the level via the provided resolver function. The read-modify-write runs
// in a transaction with the profile row locked, so concurrent grants for
// the same user are serialized and none is lost.
func (r *Repo) ApplyXPGrant(
	ctx context.Context,
	userID string,
	amount int64,
	levelForXP func(totalXP int64) int,
) (newTotalXP int64, newLevel int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.applyxpgrant")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))
	span.SetAttributes(attribute.Int64("grant.amount", amount))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var totalXP int64
	err = tx.QueryRow(
		ctx,
		`SELECT total_xp FROM gamification_profile WHERE user_id = $1 FOR UPDATE;`,
		userID,
	).Scan(&totalXP)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock profile row: %w", err)
	}

	newTotalXP = totalXP + amount
	newLevel = levelForXP(newTotalXP)

	_, err = tx.Exec(
		ctx,
		`UPDATE gamification_profile
			SET total_xp = $1, current_level = $2, updated_at = now()
			WHERE user_id = $3;`,
		newTotalXP, newLevel, userID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("update profile xp: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}

	return newTotalXP, newLevel, nil
}

// AdvanceStreak applies the streak transition rule for an activity on the
// given day and persists the result. Runs with the profile row locked, so
// racing completions for the same user cannot double-increment the streak.
func (r *Repo) AdvanceStreak(ctx context.Context, userID string, today time.Time) (_ streak.Update, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.advancestreak")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return streak.Update{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var state streak.State
	err = tx.QueryRow(
		ctx,
		`SELECT current_streak, longest_streak, last_activity_date
			FROM gamification_profile WHERE user_id = $1 FOR UPDATE;`,
		userID,
	).Scan(&state.Current, &state.Longest, &state.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return streak.Update{}, ErrProfileNotFound
	}
	if err != nil {
		return streak.Update{}, fmt.Errorf("lock profile row: %w", err)
	}

	upd := streak.Advance(state, today)

	if upd.NewDay {
		_, err = tx.Exec(
			ctx,
			`UPDATE gamification_profile
				SET current_streak = $1, longest_streak = $2, last_activity_date = $3, updated_at = now()
				WHERE user_id = $4;`,
			upd.Current, upd.Longest, today, userID,
		)
		if err != nil {
			return streak.Update{}, fmt.Errorf("update streak: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return streak.Update{}, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.Int("streak.current", upd.Current))
	span.SetAttributes(attribute.Bool("streak.newday", upd.NewDay))
	return upd, nil
}

// IncrementWorkoutTotals bumps the workout counter and accumulated volume.
// A single atomic UPDATE, no explicit locking needed.
func (r *Repo) IncrementWorkoutTotals(ctx context.Context, userID string, volumeDelta float64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.incrementtotals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE gamification_profile
			SET total_workouts = total_workouts + 1, total_volume = total_volume + $1, updated_at = now()
			WHERE user_id = $2;`,
		volumeDelta, userID,
	)
	if err != nil {
		return fmt.Errorf("update workout totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.UserID, &p.TotalXP, &p.CurrentLevel, &p.CurrentStreak, &p.LongestStreak,
		&p.LastActivityDate, &p.TotalWorkouts, &p.TotalVolume, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}
