package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/tictactoe/internal/cache"
)

// InsertRoomEvents writes a batch of action-log events in a single transaction. Events already
// stored (same id) are skipped, so a batch may be retried safely.
func (s *Store) InsertRoomEvents(ctx context.Context, events []cache.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := insertRoomEventTx(ctx, tx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRoomEventTx(ctx context.Context, tx pgx.Tx, ev cache.RoomEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload of event %s: %w", ev.ID, err)
	}
	q := `
		INSERT INTO room_events (id, game_id, room_id, seq, actor_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, q, ev.ID, ev.GameID, ev.RoomID, ev.Seq, ev.ActorID, ev.Type, payload, ev.Time())
	if err != nil {
		return fmt.Errorf("insert event %s (%s): %w", ev.ID, ev.Type, err)
	}
	return nil
}
