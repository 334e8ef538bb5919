// internal/registry/registry.go
package registry

import (
	"errors"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
	"github.com/sirupsen/logrus"
)

// StatusReplaced closes a connection whose identity was bound to a newer connection.
const StatusReplaced websocket.StatusCode = 3004

var (
	// ErrOffline means the player has no live connection.
	ErrOffline = errors.New("player is not connected")
	// ErrBusy means the player already holds a different room.
	ErrBusy = errors.New("player already holds a room")
)

// Registry maps identities to their live connection and each connection to its current room.
// It also tracks connections that have not registered yet, since room announcements go to every
// connected client. A player whose connection went away while seated keeps holding that seat
// until the room releases it with ClearRoom.
type Registry struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Connection // connection id -> connection
	byPlayer map[uuid.UUID]*Connection // player id -> current connection
	held     map[uuid.UUID]string      // player id -> room of a dropped connection
	logger   *logrus.Logger
}

// New creates an empty registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{
		conns:    make(map[uuid.UUID]*Connection),
		byPlayer: make(map[uuid.UUID]*Connection),
		held:     make(map[uuid.UUID]string),
		logger:   logger,
	}
}

// Add tracks a freshly accepted connection.
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Remove forgets c. If c was its identity's current connection the identity entry is dropped too,
// and the player and room it held are returned with current=true. The room stays held for the
// player until ClearRoom releases it.
func (r *Registry) Remove(c *Connection) (playerID uuid.UUID, roomID string, current bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID)
	if c.playerID == uuid.Nil {
		return uuid.Nil, "", false
	}
	if r.byPlayer[c.playerID] != c {
		return c.playerID, "", false
	}
	delete(r.byPlayer, c.playerID)
	if c.roomID != "" {
		r.held[c.playerID] = c.roomID
	}
	return c.playerID, c.roomID, true
}

// Bind attaches an identity to c. A previous connection bound to the same identity is detached,
// hands its room back-reference over to c, and is returned so the caller can close it.
// If c was bound to a different identity, that binding is released first.
func (r *Registry) Bind(playerID uuid.UUID, username string, c *Connection) (replaced *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.playerID != uuid.Nil && c.playerID != playerID && r.byPlayer[c.playerID] == c {
		delete(r.byPlayer, c.playerID)
		c.roomID = ""
	}

	if prev, ok := r.byPlayer[playerID]; ok && prev != c {
		replaced = prev
		if c.roomID == "" {
			c.roomID = prev.roomID
		}
		prev.roomID = ""
	}

	c.playerID = playerID
	c.username = username
	r.byPlayer[playerID] = c
	return replaced
}

// Identity returns the player bound to c.
func (r *Registry) Identity(c *Connection) (playerID uuid.UUID, username string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c.playerID == uuid.Nil || r.byPlayer[c.playerID] != c {
		return uuid.Nil, "", false
	}
	return c.playerID, c.username, true
}

// Lookup returns the live connection of a player.
func (r *Registry) Lookup(playerID uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byPlayer[playerID]
	return c, ok
}

// RoomOf returns the room the player currently occupies.
func (r *Registry) RoomOf(playerID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byPlayer[playerID]
	if !ok || c.roomID == "" {
		return "", false
	}
	return c.roomID, true
}

// Busy reports whether the player occupies a room, either through the live connection or a seat
// still held after a disconnect.
func (r *Registry) Busy(playerID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.held[playerID]; ok {
		return true
	}
	c, ok := r.byPlayer[playerID]
	return ok && c.roomID != ""
}

// ClaimRoom records that the player entered roomID. Claiming the room already held is a no-op;
// claiming while holding another room, live or from a dropped connection, fails with ErrBusy.
func (r *Registry) ClaimRoom(playerID uuid.UUID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byPlayer[playerID]
	if !ok {
		return ErrOffline
	}
	if c.roomID != "" && c.roomID != roomID {
		return ErrBusy
	}
	if held, ok := r.held[playerID]; ok && held != roomID {
		return ErrBusy
	}
	c.roomID = roomID
	return nil
}

// ClearRoom removes the player's back-reference and held seat only where they still point at
// roomID.
func (r *Registry) ClearRoom(playerID uuid.UUID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cleared := false
	if held, ok := r.held[playerID]; ok && held == roomID {
		delete(r.held, playerID)
		cleared = true
	}
	if c, ok := r.byPlayer[playerID]; ok && c.roomID == roomID {
		c.roomID = ""
		cleared = true
	}
	return cleared
}

// Send delivers msg to the player's live connection. It reports false if the player is offline
// or the connection's buffer is full.
func (r *Registry) Send(playerID uuid.UUID, msg protocol.Outbound) bool {
	r.mu.RLock()
	c, ok := r.byPlayer[playerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.Write(msg) {
		r.logger.WithFields(logrus.Fields{
			"player": playerID,
			"conn":   c.ID,
			"event":  msg.EventType(),
		}).Warn("outbound buffer full, dropped message")
		return false
	}
	return true
}

// Broadcast delivers msg to every live connection except those bound to the excluded players.
func (r *Registry) Broadcast(msg protocol.Outbound, except ...uuid.UUID) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.playerID != uuid.Nil && contains(except, c.playerID) {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.Write(msg) {
			sent++
			continue
		}
		r.logger.WithFields(logrus.Fields{
			"conn":  c.ID,
			"event": msg.EventType(),
		}).Warn("outbound buffer full, dropped broadcast")
	}
	return sent
}

// CloseAll closes every live connection with code and reason and returns how many were closed.
func (r *Registry) CloseAll(code websocket.StatusCode, reason string) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.Close(code, reason)
	}
	return len(targets)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
