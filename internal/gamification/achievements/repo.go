package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/pkg"

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

// Unlock records the achievement for the user. Returns false without an
// error when it was already unlocked, possibly by a concurrent request;
// the unique constraint on (user_id, achievement_key) settles the race.
func (r *Repo) Unlock(ctx context.Context, userID, achievementKey string, unlockedAt time.Time) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.unlock")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))
	span.SetAttributes(attribute.String("achievement.key", achievementKey))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO achievement_unlock (user_id, achievement_key, unlocked_at)
			VALUES ($1, $2, $3);`,
		userID, achievementKey, unlockedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert achievement unlock: %w", err)
	}

	return true, nil
}

// UnlockedKeys returns the keys of every achievement the user has
// unlocked.
func (r *Repo) UnlockedKeys(ctx context.Context, userID string) (_ map[string]bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.unlockedkeys")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT achievement_key FROM achievement_unlock WHERE user_id = $1;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unlocked keys: %w", err)
	}
	defer rows.Close()

	keys := map[string]bool{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		keys[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

// ListForUser returns the user's unlocks, newest first.
func (r *Repo) ListForUser(ctx context.Context, userID string) (_ []Unlock, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.achievements.listforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, achievement_key, unlocked_at
			FROM achievement_unlock
			WHERE user_id = $1
			ORDER BY unlocked_at DESC, id DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []Unlock
	for rows.Next() {
		var u Unlock
		if err := rows.Scan(&u.ID, &u.UserID, &u.AchievementKey, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return unlocks, nil
}
