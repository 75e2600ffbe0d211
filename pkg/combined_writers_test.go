package pkg

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinedWriter(t *testing.T) {
	var first, second strings.Builder
	cw := NewCombinedWriter(&first, &second)

	msg := "workout logged"
	n, err := cw.Write([]byte(msg))
	require.NoError(t, err)
	assert.Equal(t, 2*len(msg), n)
	assert.Equal(t, msg, first.String())
	assert.Equal(t, msg, second.String())
}

func TestCombinedWriter_writerFails(t *testing.T) {
	var ok strings.Builder
	cw := NewCombinedWriter(&failingWriter{}, &ok)

	n, err := cw.Write([]byte("msg"))
	require.Error(t, err)

	// the healthy writer still gets the message
	assert.Equal(t, len("msg"), n)
	assert.Equal(t, "msg", ok.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
