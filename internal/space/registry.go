// Package space implements the shared-space core: per-connection sessions,
// the room registry that fans out broadcasts, and the dispatcher that
// serializes handler turns across connections.
package space

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Agnish1611/Omniverse/internal/protocol"
)

// Registry maps a space ID to the ordered collection of its current member
// sessions. It never initiates work on its own; sessions invoke it to
// register membership and fan out messages. One Registry exists per server
// process, constructed explicitly and injected into each connection handler.
//
// All methods are safe for concurrent use. Under the single dispatcher the
// lock is uncontended; it keeps the registry correct for direct use in tests
// and any future multi-dispatcher setup.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string][]*Session
	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string][]*Session),
		logger: logger,
	}
}

// Join appends sess to the named space, creating the space entry on first
// join. A session already present (matched by ID) is not appended again, so
// a space never holds duplicate entries for one session.
//
// Precondition: sess must be non-nil.
// Postcondition: sess is visible to subsequent broadcasts and roster snapshots.
func (r *Registry) Join(spaceID string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, member := range r.rooms[spaceID] {
		if member.ID == sess.ID {
			return
		}
	}
	r.rooms[spaceID] = append(r.rooms[spaceID], sess)

	r.logger.Debug("session joined space",
		zap.String("space_id", spaceID),
		zap.String("session_id", sess.ID),
		zap.Int("members", len(r.rooms[spaceID])),
	)
}

// Leave removes all entries matching sess.ID from the named space. Removing
// a non-member is a silent no-op, as is an unknown space. The relative order
// of the remaining members is preserved. A space whose last member leaves is
// evicted from the registry.
//
// Precondition: sess must be non-nil.
func (r *Registry) Leave(spaceID string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[spaceID]
	if !ok {
		return
	}

	remaining := members[:0]
	for _, member := range members {
		if member.ID != sess.ID {
			remaining = append(remaining, member)
		}
	}

	if len(remaining) == 0 {
		delete(r.rooms, spaceID)
	} else {
		r.rooms[spaceID] = remaining
	}

	r.logger.Debug("session left space",
		zap.String("space_id", spaceID),
		zap.String("session_id", sess.ID),
		zap.Int("members", len(remaining)),
	)
}

// BroadcastExcept delivers msg to every current member of the named space
// whose ID differs from the sender's. An unknown space is a no-op. A failed
// send to one member never aborts delivery to the rest; a dead member is
// expected to self-remove through its own close handling.
//
// Precondition: sender must be non-nil.
func (r *Registry) BroadcastExcept(msg protocol.Outgoing, sender *Session, spaceID string) {
	for _, member := range r.snapshot(spaceID) {
		if member.ID == sender.ID {
			continue
		}
		r.deliver(msg, member)
	}
}

// BroadcastAll delivers msg to every current member of the named space,
// the originating sender included. Used for chat relay so every client,
// sender included, observes identical delivery. An unknown space is a no-op.
func (r *Registry) BroadcastAll(msg protocol.Outgoing, spaceID string) {
	for _, member := range r.snapshot(spaceID) {
		r.deliver(msg, member)
	}
}

// Members returns a snapshot of the named space's member sessions in
// membership order. The snapshot is safe to iterate while members join or
// leave.
//
// Postcondition: Returns nil for an unknown space.
func (r *Registry) Members(spaceID string) []*Session {
	return r.snapshot(spaceID)
}

// RoomCount returns the number of spaces with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// MemberCount returns the number of members in the named space.
//
// Postcondition: Returns 0 for an unknown space.
func (r *Registry) MemberCount(spaceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[spaceID])
}

func (r *Registry) snapshot(spaceID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[spaceID]
	if !ok {
		return nil
	}
	out := make([]*Session, len(members))
	copy(out, members)
	return out
}

func (r *Registry) deliver(msg protocol.Outgoing, member *Session) {
	if err := member.Send(msg); err != nil {
		r.logger.Debug("dropping send to unreachable member",
			zap.String("session_id", member.ID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}
