package queryinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputChannelTryPushNonBlocking(t *testing.T) {
	ch := NewOutputChannel(1)
	require.True(t, ch.TryPush(ProducedArray{ProdID: 0}))
	require.Equal(t, 1, ch.Len())
	require.False(t, ch.TryPush(ProducedArray{ProdID: 1}), "full channel must reject rather than block")
}

func TestWeakHandleReleaseMarksDead(t *testing.T) {
	ch := NewOutputChannel(1)
	h := NewWeakHandle(ch)
	require.True(t, h.IsAlive())
	_, ok := h.Get()
	require.True(t, ok)

	h.Release()
	require.False(t, h.IsAlive())
	_, ok = h.Get()
	require.False(t, ok)

	require.NotPanics(t, h.Release, "double release must be safe")
}
