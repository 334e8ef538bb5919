// internal/protocol/inbound.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound event types sent by clients.
const (
	TypeRegisterUser      = "register_user"
	TypeCreateRoom        = "create_room"
	TypeJoinRoom          = "join_room"
	TypeMakeMove          = "make_move"
	TypeGetAvailableRooms = "get_available_rooms"
	TypeGetPlayerStats    = "get_player_stats"
	TypeLeaveGame         = "leave_game"
)

// MaxUsernameLength matches the users.username column.
const MaxUsernameLength = 50

// Inbound is implemented by every decoded client event.
type Inbound interface {
	EventType() string
}

type RegisterUser struct {
	Username string `json:"username" validate:"required,max=50"`
}

type CreateRoom struct{}

type JoinRoom struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

// MakeMove carries the cell index. Range checks belong to the board rules, not the decoder.
type MakeMove struct {
	Position *int `json:"position" validate:"required"`
}

type GetAvailableRooms struct{}

type GetPlayerStats struct{}

type LeaveGame struct{}

func (RegisterUser) EventType() string      { return TypeRegisterUser }
func (CreateRoom) EventType() string        { return TypeCreateRoom }
func (JoinRoom) EventType() string          { return TypeJoinRoom }
func (MakeMove) EventType() string          { return TypeMakeMove }
func (GetAvailableRooms) EventType() string { return TypeGetAvailableRooms }
func (GetPlayerStats) EventType() string    { return TypeGetPlayerStats }
func (LeaveGame) EventType() string         { return TypeLeaveGame }

// DecodeError describes why a frame was rejected before reaching the coordinator.
type DecodeError struct {
	Type   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrUnknownType is wrapped by DecodeError for unrecognized "type" values.
var ErrUnknownType = errors.New("unknown event type")

// Decoder turns raw frames into typed events.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a Decoder with its own validator instance.
func NewDecoder() *Decoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Decoder{validate: v}
}

// Decode parses {"type": ..., ...} into the matching event struct and validates it.
func (d *Decoder) Decode(data []byte) (Inbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON format"}
	}

	var ev Inbound
	switch head.Type {
	case TypeRegisterUser:
		var v RegisterUser
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &DecodeError{Type: head.Type, Reason: "malformed payload"}
		}
		v.Username = strings.TrimSpace(v.Username)
		ev = &v
	case TypeCreateRoom:
		ev = &CreateRoom{}
	case TypeJoinRoom:
		var v JoinRoom
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &DecodeError{Type: head.Type, Reason: "malformed payload"}
		}
		v.RoomID = strings.TrimSpace(v.RoomID)
		ev = &v
	case TypeMakeMove:
		var v MakeMove
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &DecodeError{Type: head.Type, Reason: "position must be an integer"}
		}
		ev = &v
	case TypeGetAvailableRooms:
		ev = &GetAvailableRooms{}
	case TypeGetPlayerStats:
		ev = &GetPlayerStats{}
	case TypeLeaveGame:
		ev = &LeaveGame{}
	case "":
		return nil, &DecodeError{Reason: "missing event type"}
	default:
		return nil, &DecodeError{Type: head.Type, Reason: "unknown event type", Err: ErrUnknownType}
	}

	if err := d.validate.Struct(ev); err != nil {
		return nil, &DecodeError{Type: head.Type, Reason: describe(err)}
	}
	return ev, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
