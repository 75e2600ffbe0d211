package xp

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grantRepoMock struct {
	grants []Grant
	nextID int
}

func (m *grantRepoMock) Add(_ context.Context, grant *Grant) error {
	if grant.SourceType == SourceWorkoutComplete {
		for _, g := range m.grants {
			if g.UserID == grant.UserID && g.SourceID == grant.SourceID && g.SourceType == SourceWorkoutComplete {
				return ErrDuplicateGrant
			}
		}
	}
	m.nextID++
	grant.ID = m.nextID
	m.grants = append(m.grants, *grant)
	return nil
}

func (m *grantRepoMock) SumForUser(_ context.Context, userID string) (int64, error) {
	var sum int64
	for _, g := range m.grants {
		if g.UserID == userID {
			sum += g.Amount
		}
	}
	return sum, nil
}

func (m *grantRepoMock) List(_ context.Context, userID string, page, size int) ([]Grant, error) {
	var all []Grant
	for _, g := range m.grants {
		if g.UserID == userID {
			all = append(all, g)
		}
	}
	offset := (page - 1) * size
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + size
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *grantRepoMock) Count(_ context.Context, userID string) (int, error) {
	count := 0
	for _, g := range m.grants {
		if g.UserID == userID {
			count++
		}
	}
	return count, nil
}

type profileTotalsMock struct {
	totalXP int64
}

func (m *profileTotalsMock) ApplyXPGrant(
	_ context.Context,
	_ string,
	amount int64,
	levelForXP func(totalXP int64) int,
) (int64, int, error) {
	m.totalXP += amount
	return m.totalXP, levelForXP(m.totalXP), nil
}

func newTestLedger(t *testing.T) (*Ledger, *grantRepoMock, *profileTotalsMock) {
	t.Helper()
	resolver, err := NewResolver(testLevels())
	require.NoError(t, err)
	grants := &grantRepoMock{}
	profiles := &profileTotalsMock{}
	ledger := NewLedger(grants, profiles, resolver)
	ledger.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return ledger, grants, profiles
}

func TestAward(t *testing.T) {
	ledger, grants, _ := newTestLedger(t)
	ctx := context.Background()

	totalXP, level, err := ledger.Award(ctx, AwardParams{
		UserID:      "user-1",
		Amount:      57.5,
		SourceType:  SourceWorkoutComplete,
		SourceID:    "sess-1",
		Description: "workout completed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(58), totalXP) // rounded half-up
	assert.Equal(t, 1, level)

	require.Len(t, grants.grants, 1)
	assert.Equal(t, int64(58), grants.grants[0].Amount)
	assert.Equal(t, SourceWorkoutComplete, grants.grants[0].SourceType)
}

func TestAward_ZeroAmountIsNoop(t *testing.T) {
	ledger, grants, _ := newTestLedger(t)

	totalXP, level, err := ledger.Award(context.Background(), AwardParams{
		UserID:     "user-1",
		Amount:     0.4,
		SourceType: SourcePRHit,
		SourceID:   "sess-1",
	})
	require.NoError(t, err)
	assert.Zero(t, totalXP)
	assert.Zero(t, level)
	assert.Empty(t, grants.grants)
}

func TestAward_ZeroWorkoutGrantStillRecorded(t *testing.T) {
	ledger, grants, profiles := newTestLedger(t)
	ctx := context.Background()

	// workout grants mark the session as processed even when tuning
	// awards no XP for it
	totalXP, level, err := ledger.Award(ctx, AwardParams{
		UserID:     "user-1",
		Amount:     0,
		SourceType: SourceWorkoutComplete,
		SourceID:   "sess-1",
	})
	require.NoError(t, err)
	assert.Zero(t, totalXP)
	assert.Equal(t, 1, level)
	require.Len(t, grants.grants, 1)
	assert.Zero(t, grants.grants[0].Amount)
	assert.Zero(t, profiles.totalXP)

	// and the marker makes a replay detectable
	_, _, err = ledger.Award(ctx, AwardParams{
		UserID:     "user-1",
		Amount:     0,
		SourceType: SourceWorkoutComplete,
		SourceID:   "sess-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateGrant)
	assert.Len(t, grants.grants, 1)
}

func TestAward_DuplicateWorkoutGrant(t *testing.T) {
	ledger, grants, profiles := newTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Award(ctx, AwardParams{
		UserID: "user-1", Amount: 50, SourceType: SourceWorkoutComplete, SourceID: "sess-1",
	})
	require.NoError(t, err)

	_, _, err = ledger.Award(ctx, AwardParams{
		UserID: "user-1", Amount: 50, SourceType: SourceWorkoutComplete, SourceID: "sess-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateGrant)

	assert.Len(t, grants.grants, 1)
	assert.Equal(t, int64(50), profiles.totalXP)
}

func TestAward_CrossesLevelBoundary(t *testing.T) {
	ledger, _, profiles := newTestLedger(t)
	profiles.totalXP = 480

	totalXP, level, err := ledger.Award(context.Background(), AwardParams{
		UserID: "user-1", Amount: 25, SourceType: SourcePRHit, SourceID: "sess-2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(505), totalXP)
	assert.Equal(t, 2, level)
}

func TestHistory_Paging(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := ledger.Award(ctx, AwardParams{
			UserID: "user-1", Amount: 10, SourceType: SourcePRHit,
			SourceID:    gofakeit.UUID(),
			Description: gofakeit.Sentence(4),
		})
		require.NoError(t, err)
	}

	page1, total, err := ledger.History(ctx, "user-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 2)

	page3, total, err := ledger.History(ctx, "user-1", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page3, 1)
}

func TestReconcile(t *testing.T) {
	ledger, _, profiles := newTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Award(ctx, AwardParams{
		UserID: "user-1", Amount: 50, SourceType: SourceWorkoutComplete, SourceID: "sess-1",
	})
	require.NoError(t, err)
	_, _, err = ledger.Award(ctx, AwardParams{
		UserID: "user-1", Amount: 25, SourceType: SourcePRHit, SourceID: "sess-1",
	})
	require.NoError(t, err)

	report, err := ledger.Reconcile(ctx, "user-1", profiles.totalXP)
	require.NoError(t, err)
	assert.Equal(t, int64(75), report.LedgerXP)
	assert.Zero(t, report.Drift)

	// simulate a profile that drifted ahead of the ledger
	report, err = ledger.Reconcile(ctx, "user-1", profiles.totalXP+10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.Drift)
}
