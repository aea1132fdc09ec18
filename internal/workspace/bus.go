package workspace

import (
	"sync"

	"github.com/codehaven/backend/internal/vfs"
)

// ChangeEvent is a filesystem event tagged with its workspace.
type ChangeEvent struct {
	WorkspaceID string    `json:"workspace_id"`
	Event       vfs.Event `json:"event"`
}

// Bus fans filesystem change events out to per-workspace subscribers.
// Delivery is best-effort: a subscriber that stops draining its channel
// loses events rather than blocking the mutation path.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan ChangeEvent
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan ChangeEvent)}
}

// Subscribe registers a subscriber for one workspace. The returned
// cancel function removes the subscription and closes the channel.
func (b *Bus) Subscribe(workspaceID string) (<-chan ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan ChangeEvent, 64)
	if b.subs[workspaceID] == nil {
		b.subs[workspaceID] = make(map[int]chan ChangeEvent)
	}
	b.subs[workspaceID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[workspaceID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, workspaceID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the workspace,
// dropping it for subscribers with full channels.
func (b *Bus) Publish(workspaceID string, event vfs.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[workspaceID] {
		select {
		case ch <- ChangeEvent{WorkspaceID: workspaceID, Event: event}:
		default:
		}
	}
}
