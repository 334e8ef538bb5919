// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/config"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list room events are pushed to.
const DefaultQueueName = "tictactoe_events"

// Room event types recorded in the action log.
const (
	EventRoomCreated        = "room_created"
	EventGameStarted        = "game_started"
	EventMoveMade           = "move_made"
	EventGameFinished       = "game_finished"
	EventPlayerLeft         = "player_left"
	EventPlayerDisconnected = "player_disconnected"
	EventRoomAbandoned      = "room_abandoned"
	EventRoomPurged         = "room_purged"
)

// IsTerminal reports whether no further events are expected for a game after an event of this type.
func IsTerminal(eventType string) bool {
	switch eventType {
	case EventGameFinished, EventPlayerLeft, EventRoomAbandoned, EventRoomPurged:
		return true
	}
	return false
}

// RoomEvent holds the minimal info the historian needs to persist one room transition.
type RoomEvent struct {
	ID        string         `json:"id"`
	GameID    uuid.UUID      `json:"game_id"`
	RoomID    string         `json:"room_id"`
	Seq       int            `json:"seq"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// NewRoomEvent stamps an event with a fresh ULID and the current time in unix milliseconds.
func NewRoomEvent(gameID uuid.UUID, roomID string, seq int, actor *uuid.UUID, eventType string, payload map[string]any) RoomEvent {
	now := time.Now()
	return RoomEvent{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		GameID:    gameID,
		RoomID:    roomID,
		Seq:       seq,
		ActorID:   actor,
		Type:      eventType,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	}
}

// Time returns the event timestamp.
func (e RoomEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// ConnectRedis opens a client for cfg and pings it.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// ActionLog appends room events to a Redis list for the historian.
type ActionLog struct {
	rdb   *redis.Client
	queue string
}

// NewActionLog returns a log writing to queue, or DefaultQueueName when queue is empty.
func NewActionLog(rdb *redis.Client, queue string) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionLog{rdb: rdb, queue: queue}
}

// Queue is the list name events are pushed to.
func (l *ActionLog) Queue() string {
	return l.queue
}

// Publish serializes ev to JSON and pushes it onto the queue.
func (l *ActionLog) Publish(ctx context.Context, ev RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next event. It returns (nil, nil) when the wait times out.
func (l *ActionLog) Pop(ctx context.Context, timeout time.Duration) (*RoomEvent, error) {
	res, err := l.rdb.BLPop(ctx, timeout, l.queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPop returns [queue, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPop reply of length %d", len(res))
	}
	var ev RoomEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, &DecodeError{Raw: res[1], Err: err}
	}
	return &ev, nil
}

// DecodeError is returned by Pop for a queue entry that is not a RoomEvent. The entry is consumed.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode room event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
