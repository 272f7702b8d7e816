package rooms

import "sync"

// Registry tracks which sessions are subscribed to which rooms. It is a
// pure in-memory index: rooms are created lazily on first Join and
// reclaimed when the last subscriber leaves. An unknown room is treated
// as empty, never as an error.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]struct{} // roomID -> session ids
	sessions map[string]map[string]struct{} // sessionID -> room ids
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[string]struct{}),
		sessions: make(map[string]map[string]struct{}),
	}
}

// Join adds the session to the room, creating the room if absent.
// Idempotent: returns false if the session was already a member.
func (r *Registry) Join(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]struct{})
	}
	if _, ok := r.rooms[roomID][sessionID]; ok {
		return false
	}
	r.rooms[roomID][sessionID] = struct{}{}

	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[string]struct{})
	}
	r.sessions[sessionID][roomID] = struct{}{}
	return true
}

// Leave removes the session from the room. Returns true when this
// emptied the room, in which case the room has been reclaimed and a
// later Join starts it fresh.
func (r *Registry) Leave(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(sessionID, roomID)
}

func (r *Registry) leave(sessionID, roomID string) bool {
	subs, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := subs[sessionID]; !member {
		return false
	}
	delete(subs, sessionID)
	if set := r.sessions[sessionID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	if len(subs) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// SubscribersOf returns a snapshot of the room's subscriber session
// ids. Mutating the registry while iterating the result is safe: the
// slice is a copy, not a live view.
func (r *Registry) SubscribersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.rooms[roomID]
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// IsMember reports whether the session is subscribed to the room.
func (r *Registry) IsMember(sessionID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][sessionID]
	return ok
}

// DropSession removes the session from every room it belonged to and
// returns the rooms that became empty as a result.
func (r *Registry) DropSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emptied []string
	for roomID := range r.sessions[sessionID] {
		if r.leave(sessionID, roomID) {
			emptied = append(emptied, roomID)
		}
	}
	return emptied
}

// RoomsOf returns a snapshot of the rooms the session is subscribed to.
func (r *Registry) RoomsOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[sessionID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
