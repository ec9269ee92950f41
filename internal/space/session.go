package space

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Agnish1611/Omniverse/internal/protocol"
)

// Sender delivers outgoing messages to one client. Implementations must not
// block a handler turn; sends are fire-and-forget.
type Sender interface {
	Send(msg protocol.Outgoing) error
}

// State is the lifecycle stage of a session.
type State int

// Session lifecycle states, in order of progression. Closed is terminal.
const (
	StateConnecting State = iota
	StateNamed
	StateJoined
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNamed:
		return "named"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Settings holds the per-session defaults applied on creation and join.
type Settings struct {
	// SpawnX, SpawnY is the position assigned when a session joins a space.
	SpawnX float64
	SpawnY float64
	// DefaultCharacter is the character variant assigned until the client
	// selects one.
	DefaultCharacter string
}

// Session is the per-connection state machine. It decodes inbound frames,
// mutates its own state, and asks the Registry to fan out derived messages
// to the other members of its space.
//
// A Session's methods are not safe for concurrent use; the Dispatcher
// guarantees each frame (and the close event) is handled in a single
// uninterrupted turn.
type Session struct {
	// ID is the server-generated identity token, immutable for the
	// connection's lifetime.
	ID string
	// DisplayName defaults to ID until the client sets a name.
	DisplayName string
	// CharacterVariant is the selected avatar tag.
	CharacterVariant string
	// X, Y is the last reported position.
	X float64
	Y float64

	state    State
	spaceID  string
	sender   Sender
	registry *Registry
	settings Settings
	logger   *zap.Logger
}

// NewSession creates a session for a freshly accepted connection.
//
// Precondition: sender, registry, and logger must be non-nil.
// Postcondition: Returns a session in the connecting state with a unique ID.
func NewSession(sender Sender, registry *Registry, settings Settings, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:               id,
		DisplayName:      id,
		CharacterVariant: settings.DefaultCharacter,
		state:            StateConnecting,
		sender:           sender,
		registry:         registry,
		settings:         settings,
		logger:           logger.With(zap.String("session_id", id)),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// SpaceID returns the space the session currently occupies, or "" before the
// first join.
func (s *Session) SpaceID() string { return s.spaceID }

// Send delivers one outgoing message to this session's client.
func (s *Session) Send(msg protocol.Outgoing) error {
	return s.sender.Send(msg)
}

// HandleFrame processes one inbound frame to completion. Malformed frames
// and unknown message types are dropped without affecting the connection;
// the permissive policy keeps the protocol forward-compatible.
func (s *Session) HandleFrame(data []byte) {
	if s.state == StateClosed {
		return
	}

	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		s.logger.Debug("dropping malformed frame", zap.Error(err))
		return
	}

	switch env.Type {
	case protocol.TypeSetName:
		s.handleSetName(env)
	case protocol.TypeJoin:
		s.handleJoin(env)
	case protocol.TypeMove:
		s.handleMove(env, false)
	case protocol.TypeIdle:
		s.handleMove(env, true)
	case protocol.TypeChatMessage:
		s.handleChat(env)
	default:
		// Unknown types are ignored, not errors.
		s.logger.Debug("ignoring unknown message type", zap.String("type", env.Type))
	}
}

// Destroy handles transport-level closure: the rest of the space learns the
// session is gone, membership is released, and the session transitions to
// its terminal state. Idempotent; no frames are processed afterwards.
func (s *Session) Destroy() {
	if s.state == StateClosed {
		return
	}

	if s.spaceID != "" {
		s.registry.BroadcastExcept(protocol.NewUserLeft(s.ID), s, s.spaceID)
		s.registry.Leave(s.spaceID, s)
	}
	s.state = StateClosed

	s.logger.Info("session destroyed",
		zap.String("space_id", s.spaceID),
		zap.String("name", s.DisplayName),
	)
}

func (s *Session) handleSetName(env protocol.Envelope) {
	var p protocol.SetNamePayload
	if err := env.DecodePayload(&p); err != nil {
		s.logger.Debug("dropping malformed set-name", zap.Error(err))
		return
	}

	if p.Name != "" {
		s.DisplayName = p.Name
	}
	if p.CharacterVariant != "" {
		s.CharacterVariant = p.CharacterVariant
	}
	if s.state == StateConnecting {
		s.state = StateNamed
	}

	s.reply(protocol.NewNameSet(s.DisplayName, s.CharacterVariant))
}

func (s *Session) handleJoin(env protocol.Envelope) {
	var p protocol.JoinPayload
	if err := env.DecodePayload(&p); err != nil {
		s.logger.Debug("dropping malformed join", zap.Error(err))
		return
	}
	if p.SpaceID == "" {
		s.logger.Debug("dropping join without spaceId")
		return
	}
	if p.CharacterVariant != "" {
		s.CharacterVariant = p.CharacterVariant
	}

	// A join while already joined re-registers under the new space without
	// leaving the previous one. Observed client-facing behavior; the stale
	// entry clears when the connection closes.
	s.spaceID = p.SpaceID
	s.X = s.settings.SpawnX
	s.Y = s.settings.SpawnY

	s.registry.Join(s.spaceID, s)

	var roster []protocol.UserInfo
	for _, member := range s.registry.Members(s.spaceID) {
		if member.ID == s.ID {
			continue
		}
		roster = append(roster, protocol.UserInfo{
			ID:               member.ID,
			Name:             member.DisplayName,
			X:                member.X,
			Y:                member.Y,
			CharacterVariant: member.CharacterVariant,
		})
	}

	s.reply(protocol.NewSpaceJoined(
		protocol.Point{X: s.X, Y: s.Y},
		roster,
		s.ID,
		s.CharacterVariant,
	))
	s.registry.BroadcastExcept(
		protocol.NewUserJoined(s.ID, s.DisplayName, s.X, s.Y, s.CharacterVariant),
		s, s.spaceID,
	)

	s.state = StateJoined

	s.logger.Info("session joined space",
		zap.String("space_id", s.spaceID),
		zap.String("name", s.DisplayName),
		zap.Int("others", len(roster)),
	)
}

func (s *Session) handleMove(env protocol.Envelope, idle bool) {
	if s.state != StateJoined {
		return
	}

	var p protocol.MovePayload
	if err := env.DecodePayload(&p); err != nil {
		s.logger.Debug("dropping malformed position report", zap.Error(err))
		return
	}

	s.X = p.X
	s.Y = p.Y
	if p.CharacterVariant != "" {
		s.CharacterVariant = p.CharacterVariant
	}

	var msg protocol.Outgoing
	if idle {
		msg = protocol.NewUserIdle(s.ID, s.DisplayName, s.X, s.Y, p.Direction, s.CharacterVariant)
	} else {
		msg = protocol.NewUserMoved(s.ID, s.DisplayName, s.X, s.Y, p.Direction, s.CharacterVariant)
	}
	s.registry.BroadcastExcept(msg, s, s.spaceID)
}

func (s *Session) handleChat(env protocol.Envelope) {
	if s.state != StateJoined {
		return
	}

	var p protocol.ChatPayload
	if err := env.DecodePayload(&p); err != nil {
		s.logger.Debug("dropping malformed chat-message", zap.Error(err))
		return
	}

	// Relayed verbatim: the id echoed back is the sender field the client
	// supplied, and the sender receives its own line like everyone else.
	s.registry.BroadcastAll(protocol.NewReceiveMessage(p.Sender, p.Text), s.spaceID)
}

func (s *Session) reply(msg protocol.Outgoing) {
	if err := s.sender.Send(msg); err != nil {
		s.logger.Debug("dropping reply to unreachable client",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}
