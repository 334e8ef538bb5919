// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes. registry.StatusReplaced (3004) is the fourth.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client asked for a subprotocol other than "tictactoe".
	InvalidAuthTokenError websocket.StatusCode = 3001 // The identity token was invalid or expired.
	InvalidUserIDError    websocket.StatusCode = 3002 // The token names a user that does not exist.
)
