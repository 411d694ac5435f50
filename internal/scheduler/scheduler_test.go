package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-weather/internal/logger"
)

func TestScheduler_Start(t *testing.T) {
	t.Run("runs job on interval without an immediate run", func(t *testing.T) {
		s := New("test", logger.Discard())
		defer s.Stop()

		var runs int32
		require.NoError(t, s.Start(time.Second, func() { atomic.AddInt32(&runs, 1) }))

		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&runs))

		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&runs) >= 1
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s := New("test", logger.Discard())

		assert.Error(t, s.Start(0, func() {}))
		assert.Nil(t, s.scheduler)
	})

	t.Run("second start is a no-op", func(t *testing.T) {
		s := New("test", logger.Discard())
		defer s.Stop()

		require.NoError(t, s.Start(time.Minute, func() {}))
		armed := s.scheduler
		require.NoError(t, s.Start(time.Second, func() {}))
		assert.Same(t, armed, s.scheduler)
	})
}

func TestScheduler_Stop(t *testing.T) {
	t.Run("no runs after stop", func(t *testing.T) {
		s := New("test", logger.Discard())

		var runs int32
		require.NoError(t, s.Start(time.Second, func() { atomic.AddInt32(&runs, 1) }))
		s.Stop()
		assert.Nil(t, s.scheduler)

		time.Sleep(2500 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	})

	t.Run("stop twice and stop when never started", func(t *testing.T) {
		s := New("test", logger.Discard())
		assert.NotPanics(t, func() {
			s.Stop()
			s.Stop()
		})
	})

	t.Run("restart after stop", func(t *testing.T) {
		s := New("test", logger.Discard())
		defer s.Stop()

		require.NoError(t, s.Start(time.Minute, func() {}))
		s.Stop()

		var runs int32
		require.NoError(t, s.Start(time.Second, func() { atomic.AddInt32(&runs, 1) }))
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&runs) >= 1
		}, 3*time.Second, 50*time.Millisecond)
	})
}
