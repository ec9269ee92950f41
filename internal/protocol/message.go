// Package protocol defines the wire vocabulary exchanged between a client
// connection and the space server: typed envelopes carrying JSON payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client-to-server message types.
const (
	TypeSetName     = "set-name"
	TypeJoin        = "join"
	TypeMove        = "move"
	TypeIdle        = "idle"
	TypeChatMessage = "chat-message"
)

// Server-to-client message types. TypeUserMoved shares the "move" tag with
// the inbound message of the same name, matching the original wire format.
const (
	TypeNameSet        = "name-set"
	TypeSpaceJoined    = "space-joined"
	TypeUserJoined     = "user-joined"
	TypeUserMoved      = "move"
	TypeUserIdle       = "user-idle"
	TypeUserLeft       = "user-left"
	TypeReceiveMessage = "receive-message"
)

// Envelope is the outer frame of every inbound message. The payload is kept
// raw so each handler can decode only the shape it expects.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses a raw frame into an Envelope.
//
// Postcondition: Returns an Envelope with a non-empty Type, or a non-nil error.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("envelope missing type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into dst.
//
// Precondition: dst must be a non-nil pointer.
// Postcondition: Returns a non-nil error when the payload is absent or malformed.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("message %q has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decoding %q payload: %w", e.Type, err)
	}
	return nil
}

// SetNamePayload carries an identity update. CharacterVariant is optional.
type SetNamePayload struct {
	Name             string `json:"name"`
	CharacterVariant string `json:"characterVariant"`
}

// JoinPayload carries a request to enter a space. CharacterVariant is optional.
type JoinPayload struct {
	SpaceID          string `json:"spaceId"`
	CharacterVariant string `json:"characterVariant"`
}

// MovePayload carries a position report, used by both "move" and "idle"
// messages. Direction is an opaque tag round-tripped verbatim.
type MovePayload struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Direction        string  `json:"direction"`
	CharacterVariant string  `json:"characterVariant"`
}

// ChatPayload carries a chat line to relay to the sender's space.
type ChatPayload struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Outgoing is a server-to-client message ready for marshalling. It is
// constructed transiently for a single send and never shared mutably.
type Outgoing struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Encode marshals the message to its wire form.
func (o Outgoing) Encode() ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encoding %q message: %w", o.Type, err)
	}
	return data, nil
}

// Point is a 2D coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UserInfo describes one space member in a space-joined roster.
type UserInfo struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	CharacterVariant string  `json:"characterVariant"`
}

// NameSetPayload confirms an accepted identity update.
type NameSetPayload struct {
	Name             string `json:"name"`
	CharacterVariant string `json:"characterVariant"`
}

// SpaceJoinedPayload is the join reply: spawn point, current roster
// (excluding the joiner), and the joiner's own identity.
type SpaceJoinedPayload struct {
	Spawn            Point      `json:"spawn"`
	Users            []UserInfo `json:"users"`
	CurrentUser      string     `json:"currentUser"`
	CharacterVariant string     `json:"characterVariant"`
}

// UserJoinedPayload announces a new member to the rest of the space.
type UserJoinedPayload struct {
	UserID           string  `json:"userId"`
	UserName         string  `json:"userName"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	CharacterVariant string  `json:"characterVariant"`
}

// UserMovedPayload announces a position update, used by both "move" and
// "user-idle" messages.
type UserMovedPayload struct {
	UserID           string  `json:"userId"`
	UserName         string  `json:"userName"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Direction        string  `json:"direction"`
	CharacterVariant string  `json:"characterVariant"`
}

// UserLeftPayload announces a departed member.
type UserLeftPayload struct {
	UserID string `json:"userId"`
}

// ReceiveMessagePayload relays a chat line.
type ReceiveMessagePayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewNameSet builds the name-set confirmation for the requester.
func NewNameSet(name, characterVariant string) Outgoing {
	return Outgoing{
		Type:    TypeNameSet,
		Payload: NameSetPayload{Name: name, CharacterVariant: characterVariant},
	}
}

// NewSpaceJoined builds the join reply for the joining connection.
// The roster always marshals as a JSON array, never null.
func NewSpaceJoined(spawn Point, users []UserInfo, currentUser, characterVariant string) Outgoing {
	if users == nil {
		users = []UserInfo{}
	}
	return Outgoing{
		Type: TypeSpaceJoined,
		Payload: SpaceJoinedPayload{
			Spawn:            spawn,
			Users:            users,
			CurrentUser:      currentUser,
			CharacterVariant: characterVariant,
		},
	}
}

// NewUserJoined builds the join announcement for the rest of the space.
func NewUserJoined(userID, userName string, x, y float64, characterVariant string) Outgoing {
	return Outgoing{
		Type: TypeUserJoined,
		Payload: UserJoinedPayload{
			UserID:           userID,
			UserName:         userName,
			X:                x,
			Y:                y,
			CharacterVariant: characterVariant,
		},
	}
}

// NewUserMoved builds the movement broadcast for the rest of the space.
func NewUserMoved(userID, userName string, x, y float64, direction, characterVariant string) Outgoing {
	return Outgoing{
		Type: TypeUserMoved,
		Payload: UserMovedPayload{
			UserID:           userID,
			UserName:         userName,
			X:                x,
			Y:                y,
			Direction:        direction,
			CharacterVariant: characterVariant,
		},
	}
}

// NewUserIdle builds the idle-state broadcast for the rest of the space.
// Same payload shape as a movement broadcast, distinct type tag so clients
// render a standing animation.
func NewUserIdle(userID, userName string, x, y float64, direction, characterVariant string) Outgoing {
	return Outgoing{
		Type: TypeUserIdle,
		Payload: UserMovedPayload{
			UserID:           userID,
			UserName:         userName,
			X:                x,
			Y:                y,
			Direction:        direction,
			CharacterVariant: characterVariant,
		},
	}
}

// NewUserLeft builds the departure announcement for the rest of the space.
func NewUserLeft(userID string) Outgoing {
	return Outgoing{
		Type:    TypeUserLeft,
		Payload: UserLeftPayload{UserID: userID},
	}
}

// NewReceiveMessage builds the chat relay delivered to every space member,
// the sender included.
func NewReceiveMessage(id, text string) Outgoing {
	return Outgoing{
		Type:    TypeReceiveMessage,
		Payload: ReceiveMessagePayload{ID: id, Text: text},
	}
}
