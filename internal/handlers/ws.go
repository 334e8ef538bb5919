// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/middleware"
	"github.com/jason-s-yu/tictactoe/internal/models"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
	"github.com/jason-s-yu/tictactoe/internal/registry"
	"github.com/jason-s-yu/tictactoe/internal/room"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the only WebSocket subprotocol the server speaks.
const Subprotocol = "tictactoe"

// Coordinator is the room logic behind the socket. room.Coordinator implements it.
type Coordinator interface {
	RegisterPlayer(ctx context.Context, conn *registry.Connection, displayName string) (models.User, error)
	AttachPlayer(ctx context.Context, conn *registry.Connection, playerID uuid.UUID) (models.User, error)
	CreateRoom(ctx context.Context, playerID uuid.UUID) (string, error)
	JoinRoom(ctx context.Context, roomID string, playerID uuid.UUID) error
	ApplyMove(ctx context.Context, roomID string, playerID uuid.UUID, position int) error
	LeaveRoom(ctx context.Context, playerID uuid.UUID) error
	HandleDisconnect(ctx context.Context, conn *registry.Connection)
	ListOpenRooms() iter.Seq[protocol.OpenRoom]
	GetPlayerSummary(ctx context.Context, playerID uuid.UUID) (models.User, error)
}

// TokenService issues and checks identity tokens. auth.TokenIssuer implements it.
type TokenService interface {
	Issue(userID uuid.UUID) (string, error)
	Verify(token string) (uuid.UUID, error)
}

// WSOptions tunes the socket pumps.
type WSOptions struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OutboxSize     int
	OriginPatterns []string
}

// SessionGateway upgrades /ws requests and shuttles events between a client and the coordinator.
type SessionGateway struct {
	coord    Coordinator
	registry *registry.Registry
	tokens   TokenService
	decoder  *protocol.Decoder
	opts     WSOptions
	logger   *logrus.Logger

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// NewSessionGateway builds the WebSocket handler. tokens may be nil, in which case no tokens are
// issued or accepted.
func NewSessionGateway(coord Coordinator, reg *registry.Registry, tokens TokenService, opts WSOptions, logger *logrus.Logger) *SessionGateway {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 32
	}
	return &SessionGateway{
		coord:    coord,
		registry: reg,
		tokens:   tokens,
		decoder:  protocol.NewDecoder(),
		opts:     opts,
		logger:   logger,
	}
}

func (g *SessionGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	g.sessions.Add(1)
	g.mu.Unlock()
	defer g.sessions.Done()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: g.opts.OriginPatterns,
	})
	if err != nil {
		g.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.CloseNow()

	// Clients that ask for no subprotocol are served; asking for a different one is an error.
	if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the tictactoe subprotocol")
		return
	}

	ctx := r.Context()
	var conn *registry.Connection
	conn = registry.NewConnection(r.RemoteAddr, g.opts.OutboxSize, func() {
		code, reason := conn.CloseStatus()
		go c.Close(code, reason)
	})
	g.registry.Add(conn)
	middleware.LogWebSocketConnect(g.logger, r.RemoteAddr, r.URL.Path, conn.ID)
	if g.isClosing() {
		// Accepted while Shutdown was closing the registry.
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}

	if token := tokenFromRequest(r); token != "" && g.tokens != nil {
		if code, reason, ok := g.attach(ctx, conn, token); !ok {
			g.registry.Remove(conn)
			c.Close(code, reason)
			return
		}
	}

	writeCtx, stopWriter := context.WithCancel(ctx)
	go g.writePump(writeCtx, c, conn)

	readErr := g.readPump(ctx, c, conn)
	stopWriter()

	playerID, _, _ := g.registry.Identity(conn)
	g.coord.HandleDisconnect(context.WithoutCancel(ctx), conn)
	middleware.LogWebSocketDisconnect(g.logger, r.RemoteAddr, r.URL.Path, conn.ID, playerID, readErr)

	code, reason := conn.CloseStatus()
	c.Close(code, reason)
}

// Shutdown refuses new sessions, closes every live connection with StatusGoingAway and waits for
// their handlers to finish their disconnect handling, or for ctx to end.
func (g *SessionGateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()

	n := g.registry.CloseAll(websocket.StatusGoingAway, "server shutting down")
	g.logger.Infof("closing %d websocket connections", n)

	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *SessionGateway) isClosing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closing
}

// attach binds the identity named by a handshake token. On failure it returns the close status.
func (g *SessionGateway) attach(ctx context.Context, conn *registry.Connection, token string) (websocket.StatusCode, string, bool) {
	playerID, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.WithError(err).WithField("remote", conn.RemoteAddr).Warn("rejected identity token")
		return InvalidAuthTokenError, "invalid or expired token", false
	}
	user, err := g.coord.AttachPlayer(ctx, conn, playerID)
	if errors.Is(err, room.ErrNotRegistered) {
		return InvalidUserIDError, "unknown user", false
	}
	if err != nil {
		g.logger.WithError(err).WithField("player", playerID).Error("failed to attach player")
		return websocket.StatusInternalError, "could not restore session", false
	}
	conn.Write(protocol.UserRegistered{
		Type:     protocol.TypeUserRegistered,
		ID:       user.ID,
		Username: user.Username,
		Wins:     user.Wins,
		Losses:   user.Losses,
	})
	return 0, "", true
}

// readPump handles frames in arrival order until the socket closes. It returns the read error.
func (g *SessionGateway) readPump(ctx context.Context, c *websocket.Conn, conn *registry.Connection) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			conn.WriteError("binary frames are not supported")
			continue
		}
		g.handleMessage(ctx, conn, data)
	}
}

// handleMessage decodes one frame and runs it against the coordinator.
func (g *SessionGateway) handleMessage(ctx context.Context, conn *registry.Connection, data []byte) {
	ev, err := g.decoder.Decode(data)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	playerID, _, registered := g.registry.Identity(conn)

	switch m := ev.(type) {
	case *protocol.RegisterUser:
		user, err := g.coord.RegisterPlayer(ctx, conn, m.Username)
		if err != nil {
			g.replyError(conn, ev, err)
			return
		}
		reply := protocol.UserRegistered{
			Type:     protocol.TypeUserRegistered,
			ID:       user.ID,
			Username: user.Username,
			Wins:     user.Wins,
			Losses:   user.Losses,
		}
		if g.tokens != nil {
			if reply.Token, err = g.tokens.Issue(user.ID); err != nil {
				g.logger.WithError(err).WithField("player", user.ID).Warn("failed to issue token")
			}
		}
		conn.Write(reply)

	case *protocol.CreateRoom:
		if !registered {
			g.replyError(conn, ev, room.ErrNotRegistered)
			return
		}
		if _, err := g.coord.CreateRoom(ctx, playerID); err != nil {
			g.replyError(conn, ev, err)
		}

	case *protocol.JoinRoom:
		if !registered {
			g.replyError(conn, ev, room.ErrNotRegistered)
			return
		}
		if err := g.coord.JoinRoom(ctx, m.RoomID, playerID); err != nil {
			g.replyError(conn, ev, err)
		}

	case *protocol.MakeMove:
		if !registered {
			g.replyError(conn, ev, room.ErrNotRegistered)
			return
		}
		roomID, ok := g.registry.RoomOf(playerID)
		if !ok {
			g.replyError(conn, ev, room.ErrNotInRoom)
			return
		}
		if err := g.coord.ApplyMove(ctx, roomID, playerID, *m.Position); err != nil {
			g.replyError(conn, ev, err)
		}

	case *protocol.GetAvailableRooms:
		rooms := slices.Collect(g.coord.ListOpenRooms())
		if rooms == nil {
			rooms = []protocol.OpenRoom{}
		}
		conn.Write(protocol.AvailableRooms{Type: protocol.TypeAvailableRooms, Rooms: rooms})

	case *protocol.GetPlayerStats:
		if !registered {
			g.replyError(conn, ev, room.ErrNotRegistered)
			return
		}
		user, err := g.coord.GetPlayerSummary(ctx, playerID)
		if err != nil {
			g.replyError(conn, ev, err)
			return
		}
		conn.Write(protocol.PlayerStats{
			Type:       protocol.TypePlayerStats,
			ID:         user.ID,
			Username:   user.Username,
			Wins:       user.Wins,
			Losses:     user.Losses,
			TotalGames: user.TotalGames(),
			WinRate:    user.WinRate(),
		})

	case *protocol.LeaveGame:
		if !registered {
			return
		}
		if err := g.coord.LeaveRoom(ctx, playerID); err != nil {
			g.replyError(conn, ev, err)
		}
	}
}

// replyError tells the requester why an event was refused. Persistence failures are logged and
// reported generically.
func (g *SessionGateway) replyError(conn *registry.Connection, ev protocol.Inbound, err error) {
	var vErr *room.ValidationError
	switch {
	case errors.As(err, &vErr), room.IsPrecondition(err):
		conn.WriteError(err.Error())
	default:
		g.logger.WithError(err).WithFields(logrus.Fields{
			"conn":  conn.ID,
			"event": ev.EventType(),
		}).Error("event failed")
		conn.WriteError("something went wrong, please try again")
	}
}

// writePump drains the connection's outbox and keeps the socket alive with pings.
func (g *SessionGateway) writePump(ctx context.Context, c *websocket.Conn, conn *registry.Connection) {
	ticker := time.NewTicker(g.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, g.opts.WriteTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					g.logger.WithError(err).WithField("conn", conn.ID).Warn("ping failed")
					conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				g.logger.WithError(err).WithField("event", msg.EventType()).Warn("failed to marshal outgoing message")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, g.opts.WriteTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					g.logger.WithError(err).WithField("conn", conn.ID).Warn("write failed")
				}
				return
			}
		}
	}
}
