package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownEvents(t *testing.T) {
	d := NewDecoder()

	ev, err := d.Decode([]byte(`{"type":"register_user","username":"  ana  "}`))
	require.NoError(t, err)
	reg, ok := ev.(*RegisterUser)
	require.True(t, ok)
	assert.Equal(t, "ana", reg.Username)

	ev, err = d.Decode([]byte(`{"type":"join_room","roomId":"game_abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "game_abc", ev.(*JoinRoom).RoomID)

	ev, err = d.Decode([]byte(`{"type":"make_move","position":0}`))
	require.NoError(t, err)
	mv := ev.(*MakeMove)
	require.NotNil(t, mv.Position)
	assert.Equal(t, 0, *mv.Position)

	for _, typ := range []string{TypeCreateRoom, TypeGetAvailableRooms, TypeGetPlayerStats, TypeLeaveGame} {
		ev, err := d.Decode([]byte(`{"type":"` + typ + `"}`))
		require.NoError(t, err, typ)
		assert.Equal(t, typ, ev.EventType())
	}
}

func TestDecodeOutOfRangePositionIsLeftToRules(t *testing.T) {
	ev, err := NewDecoder().Decode([]byte(`{"type":"make_move","position":12}`))
	require.NoError(t, err)
	assert.Equal(t, 12, *ev.(*MakeMove).Position)
}

func TestDecodeRejects(t *testing.T) {
	d := NewDecoder()
	cases := map[string]string{
		"not json":        `{"type":`,
		"no type":         `{"username":"x"}`,
		"blank username":  `{"type":"register_user","username":"   "}`,
		"long username":   `{"type":"register_user","username":"` + strings.Repeat("a", MaxUsernameLength+1) + `"}`,
		"missing room":    `{"type":"join_room"}`,
		"missing move":    `{"type":"make_move"}`,
		"string position": `{"type":"make_move","position":"4"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode([]byte(raw))
			require.Error(t, err)
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := NewDecoder().Decode([]byte(`{"type":"cheat"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeErrorMessagesUseJSONNames(t *testing.T) {
	_, err := NewDecoder().Decode([]byte(`{"type":"join_room"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roomId is required")
}
