package gateway

import (
	"sort"
	"sync"
	"time"
)

// idleAfter marks a socket client idle in ClientInfo
const idleAfter = 5 * time.Minute

// ClientRegistry tracks connected websocket clients and what they asked for
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	stats   map[string]*clientStats
}

type clientStats struct {
	requests  int
	toolCalls int
	lastSeen  time.Time
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		stats:   make(map[string]*clientStats),
	}
}

// Add registers client
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client.ID] = client
	r.stats[client.ID] = &clientStats{lastSeen: client.ConnectedAt}
}

// Remove drops a client and its counters
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
	delete(r.stats, clientID)
}

// Snapshot returns the clients ordered by connect time
func (r *ClientRegistry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return clients
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Touch records one request from a client. tools/call requests are also
// counted as tool calls.
func (r *ClientRegistry) Touch(clientID, method string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stats[clientID]
	if !ok {
		return
	}
	st.requests++
	if method == "tools/call" {
		st.toolCalls++
	}
	st.lastSeen = time.Now()
}

// Infos describes every connected client, oldest first
func (r *ClientRegistry) Infos() []ClientInfo {
	clients := r.Snapshot()

	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]ClientInfo, 0, len(clients))
	for _, client := range clients {
		st, ok := r.stats[client.ID]
		if !ok {
			continue
		}
		infos = append(infos, ClientInfo{
			ID:           client.ID,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: st.lastSeen,
			IPAddress:    client.IPAddress,
			Requests:     st.requests,
			ToolCalls:    st.toolCalls,
			Idle:         now.Sub(st.lastSeen) > idleAfter,
		})
	}
	return infos
}
