package xp

import (
	"context"
	"fmt"

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

// Add appends a grant to the ledger. A second workout_complete grant for
// the same session hits the unique index and comes back as
// ErrDuplicateGrant.
func (r *Repo) Add(ctx context.Context, grant *Grant) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.xp.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("grant.source", string(grant.SourceType)))
	span.SetAttributes(attribute.Int64("grant.amount", grant.Amount))

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO xp_grant (user_id, amount, source_type, source_id, description, granted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		grant.UserID, grant.Amount, grant.SourceType, grant.SourceID, grant.Description, grant.GrantedAt,
	).Scan(&grant.ID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateGrant
		}
		return fmt.Errorf("insert xp grant: %w", err)
	}

	return nil
}

// SumForUser returns the ledger total for one user, the reconciliation
// counterpart of the profile's total_xp column.
func (r *Repo) SumForUser(ctx context.Context, userID string) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.xp.sumforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var sum int64
	err = r.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM xp_grant WHERE user_id = $1;`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum xp grants: %w", err)
	}

	return sum, nil
}

// HasWorkoutGrant reports whether a workout_complete grant exists for the
// given session, used as a cheap duplicate pre-check before processing.
func (r *Repo) HasWorkoutGrant(ctx context.Context, userID, sessionID string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.xp.hasworkoutgrant")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var exists bool
	err = r.db.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT 1 FROM xp_grant
				WHERE user_id = $1 AND source_id = $2 AND source_type = $3
		);`,
		userID, sessionID, SourceWorkoutComplete,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check workout grant: %w", err)
	}

	return exists, nil
}

// List returns one page of the user's ledger, newest first.
func (r *Repo) List(ctx context.Context, userID string, page, size int) (_ []Grant, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.xp.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))

	limit := size
	offset := (page - 1) * size
	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, amount, source_type, source_id, description, granted_at
			FROM xp_grant
			WHERE user_id = $1
			ORDER BY granted_at DESC, id DESC
			LIMIT $2 OFFSET $3;`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query xp grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Amount, &g.SourceType, &g.SourceID, &g.Description, &g.GrantedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return grants, nil
}

func (r *Repo) Count(ctx context.Context, userID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.xp.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM xp_grant WHERE user_id = $1;`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count xp grants: %w", err)
	}

	return count, nil
}
