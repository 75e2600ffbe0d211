package achievements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/gamify/internal/gamification/profile"
)

type profileReaderMock struct {
	profile *profile.Profile
}

func (m *profileReaderMock) Get(_ context.Context, _ string) (*profile.Profile, error) {
	return m.profile, nil
}

type prCounterMock struct {
	count int
}

func (m *prCounterMock) CountForUser(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type programmeCounterMock struct {
	count int
}

func (m *programmeCounterMock) CompletedProgrammesCount(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type unlockStoreMock struct {
	unlocked map[string]time.Time
}

func newUnlockStoreMock() *unlockStoreMock {
	return &unlockStoreMock{
		unlocked: map[string]time.Time{},
	}
}

func (m *unlockStoreMock) Unlock(_ context.Context, _, achievementKey string, unlockedAt time.Time) (bool, error) {
	if _, ok := m.unlocked[achievementKey]; ok {
		return false, nil
	}
	m.unlocked[achievementKey] = unlockedAt
	return true, nil
}

func (m *unlockStoreMock) UnlockedKeys(_ context.Context, _ string) (map[string]bool, error) {
	keys := map[string]bool{}
	for k := range m.unlocked {
		keys[k] = true
	}
	return keys, nil
}

func (m *unlockStoreMock) ListForUser(_ context.Context, userID string) ([]Unlock, error) {
	var unlocks []Unlock
	for k, at := range m.unlocked {
		unlocks = append(unlocks, Unlock{UserID: userID, AchievementKey: k, UnlockedAt: at})
	}
	return unlocks, nil
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]Definition{
		{Key: "first_workout", Name: "First Steps", Criteria: Criteria{Kind: KindTotalWorkouts, Threshold: 1}},
		{Key: "workouts_10", Name: "Regular", Criteria: Criteria{Kind: KindTotalWorkouts, Threshold: 10}},
		{Key: "streak_3", Name: "Warming Up", Criteria: Criteria{Kind: KindStreak, Threshold: 3}},
		{Key: "first_pr", Name: "Record Breaker", Criteria: Criteria{Kind: KindPRCount, Threshold: 1}},
		{Key: "first_programme", Name: "Finisher", Criteria: Criteria{Kind: KindProgrammeComplete, Threshold: 1}},
	})
	require.NoError(t, err)
	return catalog
}

func newTestEngine(
	t *testing.T,
	p *profile.Profile,
	prCount, programmeCount int,
	unlocks *unlockStoreMock,
) *Engine {
	t.Helper()
	e := NewEngine(
		testCatalog(t),
		&profileReaderMock{profile: p},
		&prCounterMock{count: prCount},
		&programmeCounterMock{count: programmeCount},
		unlocks,
	)
	e.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestCheckAndUnlock(t *testing.T) {
	unlocks := newUnlockStoreMock()
	e := newTestEngine(t, &profile.Profile{
		UserID:        "user-1",
		CurrentStreak: 3,
		TotalWorkouts: 1,
	}, 2, 0, unlocks)

	newlyUnlocked, err := e.CheckAndUnlock(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, newlyUnlocked, 3)

	keys := map[string]bool{}
	for _, def := range newlyUnlocked {
		keys[def.Key] = true
	}
	assert.True(t, keys["first_workout"])
	assert.True(t, keys["streak_3"])
	assert.True(t, keys["first_pr"])
	assert.False(t, keys["workouts_10"])
	assert.False(t, keys["first_programme"])
}

func TestCheckAndUnlock_SecondPassIsEmpty(t *testing.T) {
	unlocks := newUnlockStoreMock()
	e := newTestEngine(t, &profile.Profile{
		UserID:        "user-1",
		CurrentStreak: 1,
		TotalWorkouts: 1,
	}, 0, 0, unlocks)
	ctx := context.Background()

	first, err := e.CheckAndUnlock(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "first_workout", first[0].Key)

	second, err := e.CheckAndUnlock(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestCheckAndUnlock_LostRaceNotReported(t *testing.T) {
	unlocks := newUnlockStoreMock()
	// another request unlocked it between our snapshot and insert
	unlocks.unlocked["first_workout"] = time.Now()

	e := newTestEngine(t, &profile.Profile{
		UserID:        "user-1",
		TotalWorkouts: 1,
	}, 0, 0, unlocks)

	newlyUnlocked, err := e.CheckAndUnlock(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, newlyUnlocked)
}

func TestListForUser(t *testing.T) {
	unlocks := newUnlockStoreMock()
	e := newTestEngine(t, &profile.Profile{
		UserID:        "user-1",
		TotalWorkouts: 1,
	}, 0, 0, unlocks)
	ctx := context.Background()

	_, err := e.CheckAndUnlock(ctx, "user-1")
	require.NoError(t, err)

	all, err := e.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 5)

	var unlockedCount int
	for _, ua := range all {
		if ua.Unlocked {
			unlockedCount++
			assert.Equal(t, "first_workout", ua.Key)
			require.NotNil(t, ua.UnlockedAt)
		} else {
			assert.Nil(t, ua.UnlockedAt)
		}
	}
	assert.Equal(t, 1, unlockedCount)
}
