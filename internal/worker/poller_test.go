package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	p := NewPoller(5*time.Millisecond, func(context.Context) error {
		if runs.Add(1)%2 == 0 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(context.Background()), "second start")

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.IsRunning())
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestPoller_StopWhenNotRunning(t *testing.T) {
	p := NewPoller(time.Second, func(context.Context) error { return nil })
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPoller_ContextCancelEndsLoop(t *testing.T) {
	p := NewPoller(time.Hour, func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, p.Stop(stopCtx))
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewPoller(0, nil).interval)
}
