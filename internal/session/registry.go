// Package session tracks live websocket sessions per (user, room).
//
// A user can hold several sessions in the same room (tabs, devices). The
// registry only reports a room as vacated by a user when the last of those
// sessions goes away, so room logic flips member presence exactly once.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionBound = errors.New("session is already bound to another room")

type Entry struct {
	SessionID   uuid.UUID
	UserID      uuid.UUID
	RoomID      uuid.UUID
	ConnectedAt time.Time
}

type memberKey struct {
	userID uuid.UUID
	roomID uuid.UUID
}

// memberSet is the set of sessions for one (user, room) pair. A set that
// became empty is marked dead and dropped from the index, so late writers
// must retry with a fresh one.
type memberSet struct {
	mu   sync.Mutex
	ids  map[uuid.UUID]struct{}
	dead bool
}

type Registry struct {
	sessions sync.Map // uuid.UUID -> Entry
	members  sync.Map // memberKey -> *memberSet
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Register binds a session to (user, room). Registering the same binding
// twice is a no-op.
func (r *Registry) Register(sessionID, userID, roomID uuid.UUID) (Entry, error) {
	entry := Entry{
		SessionID:   sessionID,
		UserID:      userID,
		RoomID:      roomID,
		ConnectedAt: r.now(),
	}

	actual, loaded := r.sessions.LoadOrStore(sessionID, entry)
	if loaded {
		existing := actual.(Entry)
		if existing.UserID != userID || existing.RoomID != roomID {
			return existing, ErrSessionBound
		}
		return existing, nil
	}

	key := memberKey{userID: userID, roomID: roomID}
	for {
		v, _ := r.members.LoadOrStore(key, &memberSet{ids: make(map[uuid.UUID]struct{})})
		set := v.(*memberSet)

		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		set.ids[sessionID] = struct{}{}
		set.mu.Unlock()
		return entry, nil
	}
}

// Unregister drops a session. vacated is true when it was the last session
// of its (user, room) pair. Unknown sessions return ok=false.
func (r *Registry) Unregister(sessionID uuid.UUID) (entry Entry, vacated bool, ok bool) {
	v, loaded := r.sessions.LoadAndDelete(sessionID)
	if !loaded {
		return Entry{}, false, false
	}
	entry = v.(Entry)

	return entry, r.removeFromSet(entry), true
}

func (r *Registry) removeFromSet(entry Entry) bool {
	key := memberKey{userID: entry.UserID, roomID: entry.RoomID}

	v, found := r.members.Load(key)
	if !found {
		return false
	}
	set := v.(*memberSet)

	set.mu.Lock()
	defer set.mu.Unlock()

	if _, present := set.ids[entry.SessionID]; !present {
		return false
	}
	delete(set.ids, entry.SessionID)

	if len(set.ids) > 0 {
		return false
	}

	set.dead = true
	r.members.CompareAndDelete(key, set)
	return true
}

// RemoveRoom forgets every session bound to roomID and returns their ids
func (r *Registry) RemoveRoom(roomID uuid.UUID) []uuid.UUID {
	var removed []uuid.UUID

	r.sessions.Range(func(k, v any) bool {
		entry := v.(Entry)
		if entry.RoomID != roomID {
			return true
		}
		if r.sessions.CompareAndDelete(k, v) {
			r.removeFromSet(entry)
			removed = append(removed, entry.SessionID)
		}
		return true
	})

	return removed
}

// Lookup returns the binding of a session
func (r *Registry) Lookup(sessionID uuid.UUID) (Entry, bool) {
	v, ok := r.sessions.Load(sessionID)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// SessionsOf lists the live sessions a user holds in a room
func (r *Registry) SessionsOf(userID, roomID uuid.UUID) []uuid.UUID {
	v, ok := r.members.Load(memberKey{userID: userID, roomID: roomID})
	if !ok {
		return nil
	}
	set := v.(*memberSet)

	set.mu.Lock()
	defer set.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(set.ids))
	for id := range set.ids {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
