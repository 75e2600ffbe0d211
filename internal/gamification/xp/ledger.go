package xp

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type grantRepo interface {
	Add(ctx context.Context, grant *Grant) error
	SumForUser(ctx context.Context, userID string) (int64, error)
	List(ctx context.Context, userID string, page, size int) ([]Grant, error)
	Count(ctx context.Context, userID string) (int, error)
}

type profileTotals interface {
	ApplyXPGrant(ctx context.Context, userID string, amount int64, levelForXP func(totalXP int64) int) (int64, int, error)
}

// Ledger awards XP: it appends a grant row and folds the amount into the
// profile total in one call, so the two can only drift if a caller dies
// between the insert and the profile update. Reconcile exists for exactly
// that case.
type Ledger struct {
	grants   grantRepo
	profiles profileTotals
	resolver *Resolver
	now      func() time.Time
}

func NewLedger(grants grantRepo, profiles profileTotals, resolver *Resolver) *Ledger {
	return &Ledger{
		grants:   grants,
		profiles: profiles,
		resolver: resolver,
		now:      time.Now,
	}
}

type AwardParams struct {
	UserID      string
	Amount      float64
	SourceType  Source
	SourceID    string
	Description string
}

// Award rounds the amount half-up, records the grant and updates the
// profile. Amounts rounding to zero or less award nothing and return
// (0, 0, nil), with one exception: workout grants double as the
// per-session processing marker, so they write their ledger row even at
// zero amount. ErrDuplicateGrant passes through untouched so callers can
// recognize an already-processed source.
func (l *Ledger) Award(ctx context.Context, params AwardParams) (totalXP int64, level int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "xp.ledger.award")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", params.UserID))
	span.SetAttributes(attribute.String("grant.source", string(params.SourceType)))

	amount := int64(math.Round(params.Amount))
	if amount < 0 {
		amount = 0
	}
	if amount == 0 && params.SourceType != SourceWorkoutComplete {
		return 0, 0, nil
	}

	grant := &Grant{
		UserID:      params.UserID,
		Amount:      amount,
		SourceType:  params.SourceType,
		SourceID:    params.SourceID,
		Description: params.Description,
		GrantedAt:   l.now(),
	}
	if err := l.grants.Add(ctx, grant); err != nil {
		return 0, 0, err
	}

	totalXP, level, err = l.profiles.ApplyXPGrant(ctx, params.UserID, amount, l.resolver.LevelForXP)
	if err != nil {
		return 0, 0, fmt.Errorf("apply grant to profile: %w", err)
	}

	log.Debugf(
		"xp awarded: user %s, +%d [%s], total %d, level %d",
		params.UserID, amount, params.SourceType, totalXP, level,
	)

	return totalXP, level, nil
}

// LevelForXP exposes the resolver to collaborators that only need the
// mapping.
func (l *Ledger) LevelForXP(totalXP int64) int {
	return l.resolver.LevelForXP(totalXP)
}

func (l *Ledger) LevelName(level int) string {
	return l.resolver.LevelName(level)
}

// History returns one ledger page plus the total entry count.
func (l *Ledger) History(ctx context.Context, userID string, page, size int) (_ []Grant, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "xp.ledger.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	grants, err := l.grants.List(ctx, userID, page, size)
	if err != nil {
		return nil, 0, err
	}
	total, err = l.grants.Count(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return grants, total, nil
}

// ReconciliationReport compares the profile's XP projection with the
// ledger sum.
type ReconciliationReport struct {
	UserID    string `json:"userId"`
	ProfileXP int64  `json:"profileXp"`
	LedgerXP  int64  `json:"ledgerXp"`
	Drift     int64  `json:"drift"`
}

// Reconcile recomputes the ledger sum for the user and reports the drift
// against the given profile total. It does not repair; that is an
// operator decision.
func (l *Ledger) Reconcile(ctx context.Context, userID string, profileXP int64) (_ ReconciliationReport, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "xp.ledger.reconcile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ledgerXP, err := l.grants.SumForUser(ctx, userID)
	if err != nil {
		return ReconciliationReport{}, err
	}

	report := ReconciliationReport{
		UserID:    userID,
		ProfileXP: profileXP,
		LedgerXP:  ledgerXP,
		Drift:     profileXP - ledgerXP,
	}
	if report.Drift != 0 {
		log.Warnf("xp drift for user %s: profile %d, ledger %d", userID, profileXP, ledgerXP)
	}

	return report, nil
}
