package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/liftlog/gamify/internal/gamification/achievements"
	"github.com/liftlog/gamify/internal/gamification/profile"
	"github.com/liftlog/gamify/internal/gamification/records"
	"github.com/liftlog/gamify/internal/gamification/streak"
	"github.com/liftlog/gamify/internal/gamification/xp"
	"github.com/liftlog/gamify/internal/sessions"
	"github.com/liftlog/gamify/internal/telemetry/metrics"
	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type sessionReader interface {
	GetCompleted(ctx context.Context, sessionID string) (*sessions.Session, error)
}

type profileStore interface {
	Ensure(ctx context.Context, userID string) (*profile.Profile, error)
	AdvanceStreak(ctx context.Context, userID string, today time.Time) (streak.Update, error)
	IncrementWorkoutTotals(ctx context.Context, userID string, volumeDelta float64) error
}

type prDetector interface {
	Detect(ctx context.Context, userID string, session *sessions.Session) ([]records.PersonalRecord, error)
}

type xpLedger interface {
	Award(ctx context.Context, params xp.AwardParams) (int64, int, error)
	LevelName(level int) string
}

type grantReader interface {
	HasWorkoutGrant(ctx context.Context, userID, sessionID string) (bool, error)
}

type achievementsEngine interface {
	CheckAndUnlock(ctx context.Context, userID string) ([]achievements.Definition, error)
}

// Config holds the XP tuning knobs for completion processing.
type Config struct {
	BaseXP             float64
	PRBonusXP          float64
	AchievementBonusXP float64
	Multiplier         xp.MultiplierCurve
	// streak multiplier on a same-day repeat completion; when false
	// repeats earn plain base + PR XP
	ApplyMultiplierOnRepeat bool
}

// Orchestrator runs the full completion sequence: PR detection, streak
// advance, XP awards, totals and achievements. Steps are individually
// idempotent per session, so a retried event converges instead of
// double-awarding.
type Orchestrator struct {
	cfg          Config
	sessions     sessionReader
	profiles     profileStore
	detector     prDetector
	ledger       xpLedger
	grants       grantReader
	achievements achievementsEngine
	metrics      *metrics.Manager
	now          func() time.Time
}

func NewOrchestrator(
	cfg Config,
	sessions sessionReader,
	profiles profileStore,
	detector prDetector,
	ledger xpLedger,
	grants grantReader,
	achievementsEngine achievementsEngine,
	metricsManager *metrics.Manager,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		sessions:     sessions,
		profiles:     profiles,
		detector:     detector,
		ledger:       ledger,
		grants:       grants,
		achievements: achievementsEngine,
		metrics:      metricsManager,
		now:          time.Now,
	}
}

// ProcessWorkoutCompletion applies every gamification side effect of a
// finished session and returns what the user earned. A session already
// processed comes back as ErrAlreadyProcessed. An unknown or empty
// session earns nothing but is not an error.
func (o *Orchestrator) ProcessWorkoutCompletion(
	ctx context.Context,
	userID, sessionID string,
) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "completion.process")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))
	span.SetAttributes(attribute.String("session.id", sessionID))

	if userID == "" || sessionID == "" {
		return nil, errors.New("user id and session id are required")
	}

	startedAt := o.now()
	defer func() {
		o.metrics.HistCompletionDuration.Observe(time.Since(startedAt).Seconds())
	}()

	session, err := o.sessions.GetCompleted(ctx, sessionID)
	if errors.Is(err, sessions.ErrSessionNotFound) {
		return o.emptyResult(ctx, userID, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %s does not belong to user %s", sessionID, userID)
	}
	if len(session.Exercises) == 0 {
		return o.emptyResult(ctx, userID, sessionID)
	}

	prof, err := o.profiles.Ensure(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	previousLevel := prof.CurrentLevel
	if previousLevel < 1 {
		previousLevel = 1
	}

	processed, err := o.grants.HasWorkoutGrant(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check for earlier completion: %w", err)
	}
	if processed {
		return nil, ErrAlreadyProcessed
	}

	newPRs, err := o.detector.Detect(ctx, userID, session)
	if err != nil {
		return nil, fmt.Errorf("detect personal records: %w", err)
	}
	o.metrics.CounterPRsDetected.Add(float64(len(newPRs)))

	streakUpd, err := o.profiles.AdvanceStreak(ctx, userID, o.now())
	if err != nil {
		return nil, fmt.Errorf("advance streak: %w", err)
	}

	breakdown := o.computeXP(len(newPRs), streakUpd)

	// the displayed total splits into one workout grant and one grant
	// per PR, so the ledger sum still equals it
	prShare := int64(math.Round(float64(len(newPRs)) * o.cfg.PRBonusXP))
	totalXP, newLevel, err := o.ledger.Award(ctx, xp.AwardParams{
		UserID:      userID,
		Amount:      float64(breakdown.Total - prShare),
		SourceType:  xp.SourceWorkoutComplete,
		SourceID:    sessionID,
		Description: "workout completed",
	})
	if errors.Is(err, xp.ErrDuplicateGrant) {
		return nil, ErrAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("award workout xp: %w", err)
	}

	for _, pr := range newPRs {
		prTotal, prLevel, err := o.ledger.Award(ctx, xp.AwardParams{
			UserID:      userID,
			Amount:      o.cfg.PRBonusXP,
			SourceType:  xp.SourcePRHit,
			SourceID:    sessionID,
			Description: fmt.Sprintf("new %s record: %s", pr.RecordType, pr.ExerciseName),
		})
		if err != nil {
			return nil, fmt.Errorf("award pr xp: %w", err)
		}
		if prTotal > 0 {
			totalXP, newLevel = prTotal, prLevel
		}
	}

	if err := o.profiles.IncrementWorkoutTotals(ctx, userID, session.TotalVolume); err != nil {
		return nil, fmt.Errorf("increment workout totals: %w", err)
	}

	newAchievements, err := o.achievements.CheckAndUnlock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check achievements: %w", err)
	}
	o.metrics.CounterAchievementsUnlocked.Add(float64(len(newAchievements)))

	achievementKeys := make([]string, 0, len(newAchievements))
	var achievementXP int64
	for _, def := range newAchievements {
		achievementKeys = append(achievementKeys, def.Key)
		achTotal, achLevel, err := o.ledger.Award(ctx, xp.AwardParams{
			UserID:      userID,
			Amount:      o.cfg.AchievementBonusXP,
			SourceType:  xp.SourceAchievementUnlock,
			SourceID:    def.Key,
			Description: fmt.Sprintf("achievement unlocked: %s", def.Name),
		})
		if err != nil {
			return nil, fmt.Errorf("award achievement xp: %w", err)
		}
		if achTotal > 0 {
			totalXP, newLevel = achTotal, achLevel
			achievementXP += int64(math.Round(o.cfg.AchievementBonusXP))
		}
	}

	if newPRs == nil {
		newPRs = []records.PersonalRecord{}
	}

	result := &Result{
		SessionID:       sessionID,
		UserID:          userID,
		XPEarned:        breakdown.Total + achievementXP,
		XPBreakdown:     breakdown,
		TotalXP:         totalXP,
		NewPRs:          newPRs,
		NewAchievements: achievementKeys,
		PreviousLevel:   previousLevel,
		NewLevel:        newLevel,
		NewLevelName:    o.ledger.LevelName(newLevel),
		LeveledUp:       newLevel > previousLevel,
		Streak: StreakInfo{
			Current:  streakUpd.Current,
			Longest:  streakUpd.Longest,
			Extended: streakUpd.NewDay,
		},
	}

	o.metrics.CounterCompletionsProcessed.Inc()
	o.metrics.CounterXPGranted.Add(float64(result.XPEarned))
	log.Tracef(
		"completion processed: user %s, session %s, +%d xp, %d prs, %d achievements",
		userID, sessionID, result.XPEarned, len(newPRs), len(achievementKeys),
	)

	return result, nil
}

// computeXP applies the displayed-total formula. The streak multiplier
// only applies once per calendar day unless configured otherwise; a
// same-day repeat still earns plain base + PR XP.
func (o *Orchestrator) computeXP(prCount int, streakUpd streak.Update) XPBreakdown {
	factor := 1.0
	if streakUpd.NewDay || o.cfg.ApplyMultiplierOnRepeat {
		factor = o.cfg.Multiplier.Factor(streakUpd.Current)
	}

	prBonus := float64(prCount) * o.cfg.PRBonusXP
	total := int64(math.Round((o.cfg.BaseXP + prBonus) * factor))

	return XPBreakdown{
		Base:             o.cfg.BaseXP,
		PRBonus:          prBonus,
		StreakMultiplier: factor,
		Total:            total,
	}
}

// emptyResult covers unknown and empty sessions: the profile is ensured
// so the user exists in the system, but nothing is awarded.
func (o *Orchestrator) emptyResult(ctx context.Context, userID, sessionID string) (*Result, error) {
	prof, err := o.profiles.Ensure(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	level := prof.CurrentLevel
	if level < 1 {
		level = 1
	}

	log.Debugf("empty completion: user %s, session %s, nothing to award", userID, sessionID)

	return &Result{
		SessionID:       sessionID,
		UserID:          userID,
		XPBreakdown:     XPBreakdown{StreakMultiplier: 1},
		TotalXP:         prof.TotalXP,
		NewPRs:          []records.PersonalRecord{},
		NewAchievements: []string{},
		PreviousLevel:   level,
		NewLevel:        level,
		NewLevelName:    o.ledger.LevelName(level),
		Streak: StreakInfo{
			Current: prof.CurrentStreak,
			Longest: prof.LongestStreak,
		},
	}, nil
}
