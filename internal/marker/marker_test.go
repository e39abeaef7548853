package marker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMarker(t *testing.T) {
	ctx := context.Background()
	m := NewLocalMarker(time.Minute)

	got, err := m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, got, "second delivery must not be processed")

	got, err = m.Acquire(ctx, "msg-2")
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, m.Release(ctx, "msg-1"))
	got, err = m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got, "released mark can be acquired again")
}

func TestLocalMarker_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewLocalMarker(50 * time.Millisecond)

	got, _ := m.Acquire(ctx, "msg-1")
	require.True(t, got)

	time.Sleep(100 * time.Millisecond)

	got, err := m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got)
}
