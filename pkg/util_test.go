package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(0)
	require.Error(t, err)
	assert.Empty(t, s)

	s, err = GenerateRandomString(35)
	require.NoError(t, err)
	assert.Len(t, s, 35)

	other, err := GenerateRandomString(35)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "gamify", BytesToString([]byte("gamify")))
	assert.Empty(t, BytesToString(nil))
}
