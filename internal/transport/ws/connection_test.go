package ws

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Connection) []string {
	var out []string
	for {
		b, ok := c.nextBacklog()
		if !ok {
			break
		}
		out = append(out, string(b))
	}
	for {
		select {
		case b := <-c.send:
			out = append(out, string(b))
		default:
			return out
		}
	}
}

func TestConnection_HoldsLiveFramesUntilPrimed(t *testing.T) {
	c := NewConnection("ws-1", "R1", "alice")
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, []byte("live-1")))
	assert.Empty(t, drain(c))

	require.NoError(t, c.Prime([][]byte{[]byte("queued-1"), []byte("state")}))
	require.NoError(t, c.Send(ctx, []byte("live-2")))
	assert.Equal(t, []string{"queued-1", "state", "live-1", "live-2"}, drain(c))
	assert.ErrorIs(t, c.Prime(nil), ErrAlreadyPrimed)
}

func TestConnection_PrimeAcceptsMoreThanSendBuffer(t *testing.T) {
	c := NewConnection("ws-1", "R1", "alice")
	ctx := context.Background()

	frames := make([][]byte, sendBufferSize+50)
	for i := range frames {
		frames[i] = []byte(fmt.Sprintf("queued-%d", i))
	}
	require.NoError(t, c.Send(ctx, []byte("held")))
	require.NoError(t, c.Prime(frames))

	// Live delivery still has the whole buffer once catch-up is handed over.
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send(ctx, []byte("live")))
	}

	got := drain(c)
	require.Len(t, got, len(frames)+1+sendBufferSize)
	assert.Equal(t, "queued-0", got[0])
	assert.Equal(t, fmt.Sprintf("queued-%d", len(frames)-1), got[len(frames)-1])
	assert.Equal(t, "held", got[len(frames)])
	assert.Equal(t, "live", got[len(got)-1])
}

func TestConnection_CloseRejectsSends(t *testing.T) {
	c := NewConnection("ws-1", "R1", "alice")
	require.NoError(t, c.Prime(nil))

	require.NoError(t, c.Close("disconnected_elsewhere"))
	require.NoError(t, c.Close("again"))
	assert.Equal(t, "disconnected_elsewhere", c.reason())
	assert.ErrorIs(t, c.Send(context.Background(), []byte("x")), ErrConnectionClosed)
	assert.ErrorIs(t, c.Prime(nil), ErrConnectionClosed)
}

func TestConnection_FullBufferFailsFast(t *testing.T) {
	c := NewConnection("ws-1", "R1", "alice")
	require.NoError(t, c.Prime(nil))
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send(context.Background(), []byte("x")))
	}
	assert.ErrorIs(t, c.Send(context.Background(), []byte("x")), ErrSendBufferFull)
}
