// Package livefeed broadcasts snapshot-published notifications over
// websocket to clients tailing a contest's standings, the way the judge
// pipeline's realtime package pushes submission and leaderboard updates to
// SSE clients — same register/unregister/broadcast shape, websocket
// transport instead of SSE.
package livefeed

import (
	"context"
	"sync"
)

// SnapshotPublished is the event broadcast whenever the Builder commits a
// new base or delta snapshot.
type SnapshotPublished struct {
	ContestID        string `json:"contestId"`
	TimestampSeconds int    `json:"timestampSeconds"`
}

// Client is one connected websocket subscriber, scoped to a single
// contestId.
type Client struct {
	ID        string
	ContestID string
	Send      chan SnapshotPublished
}

// Hub fans out SnapshotPublished events to every client subscribed to the
// relevant contest. Construction and teardown follow the same
// register/unregister channel pattern the judge pipeline's SSE hub uses.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan SnapshotPublished

	mu      sync.Mutex
	clients map[string]map[*Client]struct{} // contestID -> client set
}

// NewHub creates an idle Hub; call Run to start its event loop.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan SnapshotPublished, 64),
		clients:    make(map[string]map[*Client]struct{}),
	}
}

// Run processes register/unregister/publish events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.ContestID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.ContestID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[c.ContestID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.Send)
				}
				if len(set) == 0 {
					delete(h.clients, c.ContestID)
				}
			}
			h.mu.Unlock()
		case event := <-h.publish:
			h.mu.Lock()
			for c := range h.clients[event.ContestID] {
				select {
				case c.Send <- event:
				default:
					// slow consumer: drop the event rather than block the hub.
				}
			}
			h.mu.Unlock()
		}
	}
}

// RegisterClient admits a client to the hub.
func (h *Hub) RegisterClient(c *Client) { h.register <- c }

// UnregisterClient removes a client and closes its send channel.
func (h *Hub) UnregisterClient(c *Client) { h.unregister <- c }

// Publish announces that contestID has a new snapshot at timestampSeconds.
func (h *Hub) Publish(contestID string, timestampSeconds int) {
	h.publish <- SnapshotPublished{ContestID: contestID, TimestampSeconds: timestampSeconds}
}

// ClientCount reports how many clients are subscribed to contestID, for the
// same kind of connection-count diagnostic the judge pipeline's SSE hub
// exposes.
func (h *Hub) ClientCount(contestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[contestID])
}
