package usart_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/usart"
)

var (
	_ io.ReadWriter = (*usart.Port)(nil)
	_ usart.Flusher = (*usart.Port)(nil)
)

func TestPort_WriteRead(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	port := usart.NewPort(u, 50*time.Millisecond)
	require.Equal(t, uint32(50), port.Timeout)

	n, err := port.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("ping"), p.TransmittedBytes())

	p.InjectBytes([]byte("abc"))
	assert.Equal(t, 1, port.Buffered())
	buf := make([]byte, 8)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
	assert.Zero(t, port.Buffered())
}

func TestPort_ReadStopsAtBufferSize(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	port := usart.NewPort(u, 50*time.Millisecond)

	p.InjectBytes([]byte("abcdef"))
	buf := make([]byte, 4)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
	assert.Equal(t, 2, p.Waiting())
}

func TestPort_ReadTimeout(t *testing.T) {
	u, _, _ := newSim(t, cfg8N1())
	port := usart.NewPort(u, 5*time.Millisecond)

	n, err := port.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, usart.ErrTimeout)

	n, err = port.Read(nil)
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestPort_PartialWriteOnTimeout(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	p.AutoTx = false
	port := usart.NewPort(u, 5*time.Millisecond)

	n, err := port.Write([]byte("abc"))
	assert.ErrorIs(t, err, usart.ErrTimeout)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, port.Flush(), usart.ErrTimeout)
	p.CompleteTx()
	assert.NoError(t, port.Flush())
}

func TestPort_RejectsWideElements(t *testing.T) {
	u, _, _ := newSim(t, cfg9(usart.ParityNone))
	port := usart.NewPort(u, time.Millisecond)

	_, err := port.Write([]byte("x"))
	assert.ErrorIs(t, err, usart.ErrParameter)
	_, err = port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, usart.ErrParameter)
}

func TestPort_Context(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	port := usart.NewPort(u, time.Hour)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := port.ReadContext(expired, make([]byte, 1))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	_, err = port.WriteContext(expired, []byte("x"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	ctx, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = port.ReadContext(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, usart.ErrTimeout)

	p.InjectBytes([]byte("full"))
	buf := make([]byte, 4)
	n, err := port.ReadFull(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "full", string(buf))
}
