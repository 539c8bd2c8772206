package collector

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

var errClientClosed = errors.New("client closed")

// Client represents a connected SSE client.
type Client struct {
	ID   string
	Done chan struct{}

	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex // serializes writes and close
	closed  bool
}

// send writes one message and flushes it. Writes after close are refused so
// nothing touches the ResponseWriter once the handler has returned.
func (c *Client) send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if _, err := c.w.Write(p); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Done)
	}
}

// Broadcaster fans accepted records out to SSE clients.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient adds a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Done:    make(chan struct{}),
		w:       w,
		flusher: flusher,
	}
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("client_id", client.ID).Int("clients", count).Msg("SSE client connected")
	return client, nil
}

// RemoveClient removes a client connection. It is safe to call more than once.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	client.close()
	log.Debug().Str("client_id", client.ID).Int("clients", count).Msg("SSE client disconnected")
}

// Broadcast sends rec to every connected client as one SSE message.
// Clients whose writes fail are dropped.
func (b *Broadcaster) Broadcast(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE record")
		return
	}
	message := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", rec.Type, data)

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(message); err != nil {
			if !errors.Is(err, errClientClosed) {
				log.Debug().Str("client_id", c.ID).Err(err).Msg("SSE write failed, dropping client")
			}
			b.RemoveClient(c)
		}
	}
}

// CloseAll disconnects every client.
func (b *Broadcaster) CloseAll() {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		b.RemoveClient(c)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE serves one SSE connection until the client goes away.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	if err := client.send(fmt.Appendf(nil, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)); err != nil {
		return
	}

	select {
	case <-r.Context().Done():
	case <-client.Done:
	}
}
