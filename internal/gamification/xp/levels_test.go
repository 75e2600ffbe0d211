package xp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLevels() []Level {
	return []Level{
		{MinXP: 0, Name: "Novice"},
		{MinXP: 500, Name: "Beginner"},
		{MinXP: 1500, Name: "Intermediate"},
		{MinXP: 4000, Name: "Advanced"},
		{MinXP: 10000, Name: "Elite"},
	}
}

func TestNewResolver_Validation(t *testing.T) {
	_, err := NewResolver(nil)
	assert.Error(t, err)

	_, err = NewResolver([]Level{{MinXP: 100, Name: "Late Start"}})
	assert.ErrorContains(t, err, "must start at 0")

	_, err = NewResolver([]Level{
		{MinXP: 0, Name: "A"},
		{MinXP: 500, Name: "B"},
		{MinXP: 500, Name: "C"},
	})
	assert.ErrorContains(t, err, "strictly ascending")
}

func TestLevelForXP(t *testing.T) {
	r, err := NewResolver(testLevels())
	require.NoError(t, err)

	testCases := []struct {
		totalXP int64
		level   int
	}{
		{totalXP: 0, level: 1},
		{totalXP: 499, level: 1},
		{totalXP: 500, level: 2}, // boundary belongs to the higher level
		{totalXP: 501, level: 2},
		{totalXP: 1500, level: 3},
		{totalXP: 9999, level: 4},
		{totalXP: 10000, level: 5},
		{totalXP: 1_000_000, level: 5},
		{totalXP: -50, level: 1},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.level, r.LevelForXP(tc.totalXP), "xp %d", tc.totalXP)
	}
}

func TestLevelForXP_MonotonicOverRange(t *testing.T) {
	r, err := NewResolver(testLevels())
	require.NoError(t, err)

	prev := r.LevelForXP(0)
	for totalXP := int64(1); totalXP <= 12000; totalXP += 7 {
		level := r.LevelForXP(totalXP)
		require.GreaterOrEqual(t, level, prev, "level dropped at xp %d", totalXP)
		prev = level
	}
}

func TestLevelName(t *testing.T) {
	r, err := NewResolver(testLevels())
	require.NoError(t, err)

	assert.Equal(t, "Novice", r.LevelName(1))
	assert.Equal(t, "Elite", r.LevelName(5))
	assert.Empty(t, r.LevelName(0))
	assert.Empty(t, r.LevelName(6))
}

func TestNextLevelXP(t *testing.T) {
	r, err := NewResolver(testLevels())
	require.NoError(t, err)

	next, ok := r.NextLevelXP(1)
	require.True(t, ok)
	assert.Equal(t, int64(500), next)

	_, ok = r.NextLevelXP(5)
	assert.False(t, ok)
}

func TestMultiplierCurve(t *testing.T) {
	curve := MultiplierCurve{Step: 0.05, Max: 2.0}

	assert.Equal(t, 1.0, curve.Factor(0))
	assert.Equal(t, 1.0, curve.Factor(1))
	assert.InDelta(t, 1.05, curve.Factor(2), 1e-9)
	assert.InDelta(t, 1.45, curve.Factor(10), 1e-9)
	// 1 + 0.05*29 = 2.45, capped
	assert.Equal(t, 2.0, curve.Factor(30))
	assert.Equal(t, 2.0, curve.Factor(365))
}
