// Package server tracks live authenticated sessions and their room
// membership through the Registry type.
package server

import "sync"

// Registry owns the set of live sessions and an index from room slug to the
// sessions joined to it, so broadcast cost is proportional to room size
// rather than to the total number of connections. All methods are safe for
// concurrent use.
type Registry struct {
	mu sync.RWMutex

	// sessions maps each live session to the set of rooms it has joined.
	sessions map[*Session]map[string]struct{}
	// rooms is the inverse index, kept in lockstep with sessions.
	rooms map[string]map[*Session]struct{}
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[*Session]map[string]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// Register adds a session with an empty joined-room set. Registering a
// session twice is a no-op.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s]; exists {
		return
	}
	r.sessions[s] = make(map[string]struct{})
}

// Unregister removes the session and every room membership it holds. It is
// idempotent: removing an unknown or already-removed session is a no-op.
// It reports whether the session was present, so the caller can close the
// session's send channel exactly once.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, exists := r.sessions[s]
	if !exists {
		return false
	}

	for room := range joined {
		r.dropMembership(s, room)
	}
	delete(r.sessions, s)
	return true
}

// Join adds the room to the session's membership set. Joining a room the
// session is already in, or joining before registration, is a no-op.
func (r *Registry) Join(s *Session, room string) {
	if room == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	joined, exists := r.sessions[s]
	if !exists {
		return
	}
	if _, already := joined[room]; already {
		return
	}

	joined[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	members[s] = struct{}{}
}

// Leave removes exactly the named room from the session's membership set.
// Leaving a room the session is not in is a no-op.
func (r *Registry) Leave(s *Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, exists := r.sessions[s]
	if !exists {
		return
	}
	if _, member := joined[room]; !member {
		return
	}

	delete(joined, room)
	r.dropMembership(s, room)
}

// MembersOf returns a point-in-time snapshot of the sessions joined to the
// room. The snapshot is safe to iterate while sessions join and leave
// concurrently; each member appears at most once.
func (r *Registry) MembersOf(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	snapshot := make([]*Session, 0, len(members))
	for s := range members {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// Contains reports whether the session is currently registered.
func (r *Registry) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.sessions[s]
	return exists
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// dropMembership removes s from the room index, deleting the bucket when it
// empties. Callers must hold the write lock.
func (r *Registry) dropMembership(s *Session, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
