package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	ch chan cache.RoomEvent
}

func (s *chanSource) Pop(ctx context.Context, timeout time.Duration) (*cache.RoomEvent, error) {
	select {
	case ev := <-s.ch:
		return &ev, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeSink struct {
	mu        sync.Mutex
	inserted  []cache.RoomEvent
	batches   int
	abandoned []uuid.UUID
	fail      error
}

func (s *fakeSink) InsertRoomEvents(_ context.Context, events []cache.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.batches++
	s.inserted = append(s.inserted, events...)
	return nil
}

func (s *fakeSink) AbandonGames(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = append(s.abandoned, ids...)
	return int64(len(ids)), nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func event(game uuid.UUID, seq int, typ string) cache.RoomEvent {
	return cache.NewRoomEvent(game, "game_"+game.String(), seq, nil, typ, nil)
}

func TestAppendFlushesFullBatch(t *testing.T) {
	sink := &fakeSink{}
	s := New(nil, sink, config.HistorianConfig{BatchSize: 3}, quietLogger())
	game := uuid.New()
	ctx := context.Background()

	s.Append(ctx, event(game, 1, cache.EventRoomCreated))
	s.Append(ctx, event(game, 2, cache.EventGameStarted))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 2, s.Pending())

	s.Append(ctx, event(game, 3, cache.EventMoveMade))
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 1, sink.batches)
	assert.Equal(t, 0, s.Pending())
}

func TestFailedFlushIsRetried(t *testing.T) {
	sink := &fakeSink{fail: errors.New("db down")}
	s := New(nil, sink, config.HistorianConfig{BatchSize: 10}, quietLogger())
	game := uuid.New()
	ctx := context.Background()

	s.Append(ctx, event(game, 1, cache.EventRoomCreated))
	s.Flush(ctx)
	assert.Equal(t, 1, s.Pending())

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	s.Append(ctx, event(game, 2, cache.EventGameStarted))
	s.Flush(ctx)
	assert.Equal(t, 0, s.Pending())

	require.Len(t, sink.inserted, 2)
	assert.Equal(t, 1, sink.inserted[0].Seq)
	assert.Equal(t, 2, sink.inserted[1].Seq)
}

func TestSweepAbandonsInactiveGames(t *testing.T) {
	sink := &fakeSink{}
	s := New(nil, sink, config.HistorianConfig{Inactivity: time.Minute}, quietLogger())
	now := time.Now()
	s.now = func() time.Time { return now }

	quiet, busy, done := uuid.New(), uuid.New(), uuid.New()
	s.Track(event(quiet, 1, cache.EventGameStarted))
	s.Track(event(done, 1, cache.EventGameStarted))
	s.Track(event(done, 2, cache.EventGameFinished))
	assert.Equal(t, 1, s.Tracked())

	now = now.Add(2 * time.Minute)
	s.Track(event(busy, 1, cache.EventMoveMade))

	s.Sweep(context.Background())
	assert.Equal(t, []uuid.UUID{quiet}, sink.abandoned)
	assert.Equal(t, 1, s.Tracked())

	s.Sweep(context.Background())
	assert.Len(t, sink.abandoned, 1)
}

func TestRunDrainsSourceAndFlushesOnStop(t *testing.T) {
	src := &chanSource{ch: make(chan cache.RoomEvent, 10)}
	sink := &fakeSink{}
	s := New(src, sink, config.HistorianConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		PopTimeout:    10 * time.Millisecond,
		SweepInterval: time.Hour,
	}, quietLogger())

	game := uuid.New()
	for i := 1; i <= 4; i++ {
		src.ch <- event(game, i, cache.EventMoveMade)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Pending() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 4, sink.count())
	assert.Equal(t, 1, s.Tracked())
}
