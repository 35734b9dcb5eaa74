package repository

import "sync"

// Listing change event kinds.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// ListingEvent notifies subscribers that a listing record changed. Consumers
// re-read the record by id; the event carries no payload.
type ListingEvent struct {
	Kind      string
	ListingID string
}

// listingHub fans listing change events out to subscribers. Publishing never
// blocks on a slow subscriber; events past the buffer are dropped for that
// subscriber.
type listingHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ListingEvent
}

func newListingHub() *listingHub {
	return &listingHub{
		subs: make(map[int]chan ListingEvent),
	}
}

func (h *listingHub) subscribe() (<-chan ListingEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan ListingEvent, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (h *listingHub) publish(ev ListingEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
