package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("ValidLevel", func(t *testing.T) {
		l, err := NewLogger("debug")
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(-1))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewLogger("loud")
		assert.Error(t, err)
	})

	t.Run("WarnHidesInfo", func(t *testing.T) {
		l, err := NewLogger("warn")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(0))
	})
}

func TestForInvocation(t *testing.T) {
	base := Nop()
	a := base.ForInvocation()
	b := base.ForInvocation()

	assert.Len(t, a.InvocationID, 36)
	assert.NotEqual(t, a.InvocationID, b.InvocationID)
}
