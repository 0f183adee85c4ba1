package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSetUnknownArgumentFails(t *testing.T) {
	b := NewBase()
	b.AddArgument("known")

	require.NoError(t, b.Set("known", 1.0))
	err := b.Set("unknown", 1.0)
	require.ErrorIs(t, err, ErrUnknownArgument)
}

func TestBaseGetUnsetReturnsFalse(t *testing.T) {
	b := NewBase()
	b.AddArgument("foo")
	_, ok := b.Get("foo")
	assert.False(t, ok)
}

func TestBaseGetFloat64Fallback(t *testing.T) {
	b := NewBase()
	b.AddArgument("x")
	assert.Equal(t, 5.0, b.GetFloat64("x", 5.0))
	require.NoError(t, b.Set("x", 42.0))
	assert.Equal(t, 42.0, b.GetFloat64("x", 5.0))
}
