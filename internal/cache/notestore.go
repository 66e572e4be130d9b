package cache

import "sync"

// NoteStore remembers the last non-empty public note seen for each server id.
// The upstream occasionally reports an empty note for one tick; falling back
// to the stored value keeps billing cards from flickering blank.
type NoteStore struct {
	mu    sync.RWMutex
	notes map[uint32]string
}

// NewNoteStore creates an empty note store.
func NewNoteStore() *NoteStore {
	return &NoteStore{notes: make(map[uint32]string)}
}

// Resolve returns the note to display for a server. A non-empty incoming note
// is stored and returned; an empty one falls back to the last stored note, or
// an empty string when nothing was ever stored.
func (s *NoteStore) Resolve(serverID uint32, publicNote string) string {
	if publicNote == "" {
		s.mu.RLock()
		stored := s.notes[serverID]
		s.mu.RUnlock()
		return stored
	}

	s.mu.Lock()
	s.notes[serverID] = publicNote
	s.mu.Unlock()
	return publicNote
}
