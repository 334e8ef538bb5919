package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomEvent(t *testing.T) {
	gameID := uuid.New()
	actor := uuid.New()
	before := time.Now().Add(-time.Millisecond)

	ev := NewRoomEvent(gameID, "game_1", 3, &actor, EventMoveMade, map[string]any{"position": 4})

	id, err := ulid.ParseStrict(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Timestamp, int64(id.Time()))
	assert.Equal(t, gameID, ev.GameID)
	assert.Equal(t, 3, ev.Seq)
	assert.True(t, ev.Time().After(before))

	other := NewRoomEvent(gameID, "game_1", 4, nil, EventMoveMade, nil)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestRoomEventJSON(t *testing.T) {
	ev := NewRoomEvent(uuid.New(), "game_1", 1, nil, EventRoomCreated, map[string]any{"symbol": "X"})
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "actor_id")

	var back RoomEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Type, back.Type)
	assert.Equal(t, "X", back.Payload["symbol"])
}

func TestIsTerminal(t *testing.T) {
	for _, typ := range []string{EventGameFinished, EventPlayerLeft, EventRoomAbandoned, EventRoomPurged} {
		assert.True(t, IsTerminal(typ), typ)
	}
	for _, typ := range []string{EventRoomCreated, EventGameStarted, EventMoveMade, EventPlayerDisconnected} {
		assert.False(t, IsTerminal(typ), typ)
	}
}

func TestNewActionLogDefaultQueue(t *testing.T) {
	assert.Equal(t, DefaultQueueName, NewActionLog(nil, "").Queue())
	assert.Equal(t, "custom", NewActionLog(nil, "custom").Queue())
}
