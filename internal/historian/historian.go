// Package historian drains the room action log into Postgres and abandons games that go quiet.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/config"
	"github.com/sirupsen/logrus"
)

// Source yields action-log events. Pop returns (nil, nil) when nothing arrived within timeout.
// cache.ActionLog implements it.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.RoomEvent, error)
}

// Sink persists events and abandons games. database.Store implements it.
type Sink interface {
	InsertRoomEvents(ctx context.Context, events []cache.RoomEvent) error
	AbandonGames(ctx context.Context, gameIDs []uuid.UUID) (int64, error)
}

// maxBacklogBatches bounds how many batches are kept for retry while the sink is failing.
const maxBacklogBatches = 10

// Service batches events from a Source into a Sink and tracks per-game activity.
type Service struct {
	source Source
	sink   Sink
	cfg    config.HistorianConfig
	logger *logrus.Logger
	now    func() time.Time

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.RoomEvent
}

// New builds a service. Zero config values fall back to the env defaults.
func New(source Source, sink Sink, cfg config.HistorianConfig, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Service{
		source:       source,
		sink:         sink,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		lastActivity: make(map[uuid.UUID]time.Time),
		batch:        make([]cache.RoomEvent, 0, cfg.BatchSize),
	}
}

// Run consumes the source until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.Info("historian started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := s.source.Pop(ctx, s.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var decodeErr *cache.DecodeError
			if errors.As(err, &decodeErr) {
				s.logger.WithError(err).Warn("skipping invalid room event")
				continue
			}
			s.logger.WithError(err).Error("failed to pop room event")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if ev == nil {
			continue
		}
		s.Track(*ev)
		s.Append(ctx, *ev)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Track records activity for the event's game. Terminal events stop tracking the game.
func (s *Service) Track(ev cache.RoomEvent) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	if cache.IsTerminal(ev.Type) {
		delete(s.lastActivity, ev.GameID)
		return
	}
	s.lastActivity[ev.GameID] = s.now()
}

// Tracked returns the number of games being watched for inactivity.
func (s *Service) Tracked() int {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return len(s.lastActivity)
}

// Append adds ev to the pending batch and flushes once the batch is full.
func (s *Service) Append(ctx context.Context, ev cache.RoomEvent) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, ev)
	if len(s.batch) >= s.cfg.BatchSize {
		s.flushLocked(ctx)
	}
}

// Flush writes the pending batch.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked(ctx)
}

func (s *Service) flushLocked(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	pending := make([]cache.RoomEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertRoomEvents(ctx, pending); err != nil {
		if len(pending) > maxBacklogBatches*s.cfg.BatchSize {
			s.logger.WithError(err).Errorf("dropping %d room events after repeated failures", len(pending))
			return
		}
		s.logger.WithError(err).Warnf("failed to flush %d room events, will retry", len(pending))
		s.batch = append(pending, s.batch...)
		return
	}
	s.logger.Debugf("flushed %d room events", len(pending))
}

// Pending returns the number of events waiting to be flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// Sweep abandons every tracked game without activity for longer than the inactivity timeout.
func (s *Service) Sweep(ctx context.Context) {
	now := s.now()
	var stale []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	if len(stale) == 0 {
		return
	}
	n, err := s.sink.AbandonGames(ctx, stale)
	if err != nil {
		s.logger.WithError(err).Errorf("failed to abandon %d inactive games", len(stale))
		return
	}
	s.logger.Infof("marked %d of %d inactive games abandoned", n, len(stale))
}
