// Package notify holds the client-side notification cache and the
// presence counter for a single identified session.
package notify

import (
	"sort"
	"sync"

	"github.com/nhle/notehub/internal/model"
)

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
}

// Store is an ordered, deduplicated notification cache. The unread count
// is always derived from the list.
type Store interface {
	Load(list []model.Notification)
	Prepend(n model.Notification) bool
	MarkRead(id string) bool
	ClearAll()
	Snapshot() Snapshot
	UnreadCount() int
}

// MemoryStore is the Store used by a live session. All mutations go through
// one mutex so each method is atomic with respect to the others.
type MemoryStore struct {
	mu    sync.RWMutex
	items []model.Notification
	ids   map[string]struct{}

	onChange func(Snapshot)
}

// NewMemoryStore creates an empty store. onChange, when non-nil, receives
// a snapshot after every mutation that changed the contents. It runs under
// the store lock, in mutation order, and must not call back into the store.
func NewMemoryStore(onChange func(Snapshot)) *MemoryStore {
	return &MemoryStore{
		ids:      make(map[string]struct{}),
		onChange: onChange,
	}
}

// Load replaces the contents with list sorted newest first by CreatedAt.
// Duplicate ids in list keep their first occurrence after sorting.
func (s *MemoryStore) Load(list []model.Notification) {
	sorted := make([]model.Notification, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	items := make([]model.Notification, 0, len(sorted))
	ids := make(map[string]struct{}, len(sorted))
	for _, n := range sorted {
		if _, dup := ids[n.ID]; dup {
			continue
		}
		ids[n.ID] = struct{}{}
		items = append(items, n)
	}

	s.mu.Lock()
	s.items = items
	s.ids = ids
	s.notifyLocked()
	s.mu.Unlock()
}

// Prepend inserts n at the head unless its id is already present.
// Arrival order wins over CreatedAt. Reports whether n was inserted.
func (s *MemoryStore) Prepend(n model.Notification) bool {
	s.mu.Lock()
	if _, exists := s.ids[n.ID]; exists {
		s.mu.Unlock()
		return false
	}
	items := make([]model.Notification, 0, len(s.items)+1)
	items = append(items, n)
	items = append(items, s.items...)
	s.items = items
	s.ids[n.ID] = struct{}{}
	s.notifyLocked()
	s.mu.Unlock()
	return true
}

// MarkRead flags the entry with id as read. Absent or already-read ids are
// a no-op. Reports whether anything changed.
func (s *MemoryStore) MarkRead(id string) bool {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.items[i].Read = true
				changed = true
			}
			break
		}
	}
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.notifyLocked()
	s.mu.Unlock()
	return true
}

// ClearAll marks every entry as read.
func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	if changed {
		s.notifyLocked()
	}
}

// Snapshot returns a copy of the current contents.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// UnreadCount returns the number of unread entries.
func (s *MemoryStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countUnread(s.items)
}

func (s *MemoryStore) snapshotLocked() Snapshot {
	items := make([]model.Notification, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Notifications: items,
		UnreadCount:   countUnread(items),
	}
}

func (s *MemoryStore) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}

func countUnread(items []model.Notification) int {
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return unread
}
