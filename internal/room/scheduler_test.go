package room

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsTask(t *testing.T) {
	s := NewScheduler()
	var ran atomic.Bool
	assert.True(t, s.After(5*time.Millisecond, func() { ran.Store(true) }))
	assert.Eventually(t, ran.Load, time.Second, time.Millisecond)
	assert.Equal(t, 0, s.Pending())
	s.Shutdown()
}

func TestSchedulerShutdownDropsPending(t *testing.T) {
	s := NewScheduler()
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		s.After(time.Hour, func() { ran.Add(1) })
	}
	assert.Equal(t, 3, s.Pending())

	s.Shutdown()
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.After(time.Millisecond, func() { ran.Add(1) }))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, ran.Load())
}

func TestSchedulerShutdownWaitsForRunningTask(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	var finished atomic.Bool
	s.After(0, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	s.Shutdown()
	assert.True(t, finished.Load())
}
