package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// clientBuffer is how many undelivered frames a client may queue
	// before the hub considers it stalled and drops it.
	clientBuffer = 16

	pingInterval = 30 * time.Second
)

// frame is one wire-ready SSE message.
type frame struct {
	name string
	data []byte
}

// Hub fans analysis events out to connected SSE clients. Delivery is
// through per-client buffered channels; the streaming handler owns the
// ResponseWriter, so no two goroutines ever write the same connection.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// Client is one SSE subscription.
type Client struct {
	frames chan frame
	done   chan struct{}
	once   sync.Once
	ping   time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Subscribe registers a new client. The connected event is already
// queued on the returned client.
func (h *Hub) Subscribe() *Client {
	c := &Client{
		frames: make(chan frame, clientBuffer),
		done:   make(chan struct{}),
		ping:   pingInterval,
	}
	if data, err := json.Marshal(&Event{Type: EventConnected, Timestamp: time.Now()}); err == nil {
		c.frames <- frame{name: EventConnected, data: data}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unsubscribe drops the client. Safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues the event on every client. A client whose buffer is
// full has stopped draining and gets dropped, so one stuck connection
// cannot hold up the rest.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.frames <- frame{name: event.Type, data: data}:
		default:
			delete(h.clients, c)
			c.close()
		}
	}
}

// CloseAll disconnects every client. Used on server shutdown so blocked
// streaming handlers unwind.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Done reports when the hub has dropped the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Stream writes SSE frames to w until ctx ends, the hub drops the
// client, or a write fails. It must be the only writer to w.
func (c *Client) Stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) error {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("Access-Control-Allow-Origin", "*")

	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case f := <-c.frames:
			if err := writeFrame(w, f); err != nil {
				return err
			}
			flusher.Flush()
		case <-ticker.C:
			// Comment lines keep idle connections from being timed out
			// by proxies.
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

// writeFrame emits a named event so browsers can addEventListener on
// the event type instead of demultiplexing onmessage.
func writeFrame(w io.Writer, f frame) error {
	if f.name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", f.name); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", f.data)
	return err
}
