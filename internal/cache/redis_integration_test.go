//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := testutil.Redis(t)
	log := NewActionLog(rdb, "test_events")

	gameID := uuid.New()
	first := NewRoomEvent(gameID, "game_1", 1, nil, EventRoomCreated, map[string]any{"player": "ana"})
	second := NewRoomEvent(gameID, "game_1", 2, nil, EventGameStarted, nil)
	require.NoError(t, log.Publish(ctx, first))
	require.NoError(t, log.Publish(ctx, second))

	got, err := log.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "ana", got.Payload["player"])

	got, err = log.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = log.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got, "empty queue times out without error")
}

func TestActionLogBadEntry(t *testing.T) {
	ctx := context.Background()
	rdb := testutil.Redis(t)
	log := NewActionLog(rdb, "test_events")

	require.NoError(t, rdb.RPush(ctx, log.Queue(), "not json").Err())
	_, err := log.Pop(ctx, time.Second)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "not json", decodeErr.Raw)

	n, err := rdb.LLen(ctx, log.Queue()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
