package achievements

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/gamification/profile"
	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type profileReader interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

type prCounter interface {
	CountForUser(ctx context.Context, userID string) (int, error)
}

type programmeCounter interface {
	CompletedProgrammesCount(ctx context.Context, userID string) (int, error)
}

type unlockStore interface {
	Unlock(ctx context.Context, userID, achievementKey string, unlockedAt time.Time) (bool, error)
	UnlockedKeys(ctx context.Context, userID string) (map[string]bool, error)
	ListForUser(ctx context.Context, userID string) ([]Unlock, error)
}

// Engine runs the full catalog against a fresh progress snapshot and
// unlocks whatever newly qualifies.
type Engine struct {
	catalog    *Catalog
	profiles   profileReader
	records    prCounter
	programmes programmeCounter
	unlocks    unlockStore
	now        func() time.Time
}

func NewEngine(
	catalog *Catalog,
	profiles profileReader,
	records prCounter,
	programmes programmeCounter,
	unlocks unlockStore,
) *Engine {
	return &Engine{
		catalog:    catalog,
		profiles:   profiles,
		records:    records,
		programmes: programmes,
		unlocks:    unlocks,
		now:        time.Now,
	}
}

// CheckAndUnlock evaluates every catalog entry the user has not unlocked
// yet and returns those unlocked by this call. An unlock that loses the
// race to a concurrent request is not reported here, so each unlock is
// announced exactly once across all callers.
func (e *Engine) CheckAndUnlock(ctx context.Context, userID string) (_ []Definition, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "achievements.engine.checkandunlock")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	snapshot, err := e.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked, err := e.unlocks.UnlockedKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get unlocked keys: %w", err)
	}

	var newlyUnlocked []Definition
	for _, def := range e.catalog.All() {
		if unlocked[def.Key] {
			continue
		}

		ok, err := def.Criteria.SatisfiedBy(snapshot)
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", def.Key, err)
		}
		if !ok {
			continue
		}

		inserted, err := e.unlocks.Unlock(ctx, userID, def.Key, e.now())
		if err != nil {
			return nil, fmt.Errorf("unlock %q: %w", def.Key, err)
		}
		if !inserted {
			continue
		}

		log.Debugf("achievement unlocked: user %s, %s", userID, def.Key)
		newlyUnlocked = append(newlyUnlocked, def)
	}

	span.SetAttributes(attribute.Int("achievements.unlocked", len(newlyUnlocked)))
	return newlyUnlocked, nil
}

func (e *Engine) snapshot(ctx context.Context, userID string) (Snapshot, error) {
	p, err := e.profiles.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get profile: %w", err)
	}

	prCount, err := e.records.CountForUser(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count personal records: %w", err)
	}

	programmes, err := e.programmes.CompletedProgrammesCount(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count completed programmes: %w", err)
	}

	return Snapshot{
		CurrentStreak:       p.CurrentStreak,
		TotalWorkouts:       p.TotalWorkouts,
		TotalVolume:         p.TotalVolume,
		PRCount:             prCount,
		CompletedProgrammes: programmes,
	}, nil
}

// UserAchievement pairs a catalog entry with its unlock state for
// listing.
type UserAchievement struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// ListForUser returns the whole catalog annotated with the user's unlock
// state, locked entries included.
func (e *Engine) ListForUser(ctx context.Context, userID string) (_ []UserAchievement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "achievements.engine.listforuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	unlocks, err := e.unlocks.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.AchievementKey] = u.UnlockedAt
	}

	all := e.catalog.All()
	result := make([]UserAchievement, 0, len(all))
	for _, def := range all {
		ua := UserAchievement{Definition: def}
		if at, ok := unlockedAt[def.Key]; ok {
			ua.Unlocked = true
			at := at
			ua.UnlockedAt = &at
		}
		result = append(result, ua)
	}

	return result, nil
}
