// Package sse streams Server-Sent Events to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kbukum/glowbook/logger"
)

// EventTypeConnected is the first event of every stream.
const EventTypeConnected = "connected"

// DefaultKeepAlive is the interval between keep-alive comments. It stays
// below the usual 60s proxy idle timeout.
const DefaultKeepAlive = 30 * time.Second

// Event is one SSE frame.
type Event struct {
	Type string
	Data []byte
}

// Client is one connected stream.
type Client struct {
	id      string
	events  chan Event
	dropped atomic.Int64
	log     *logger.Logger
}

// NewClient creates a client whose queue holds buffer events.
func NewClient(id string, buffer int, log *logger.Logger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{id: id, events: make(chan Event, buffer), log: log.WithComponent("sse")}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Dropped returns how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Send queues an event without blocking. It returns false when the client
// is too slow and the event was dropped.
func (c *Client) Send(e Event) bool {
	select {
	case c.events <- e:
		return true
	default:
		c.dropped.Add(1)
		c.log.Warn("client queue full, dropping event", logger.Fields("client_id", c.id, "event", e.Type))
		return false
	}
}

// SendJSON marshals v and queues it as an event of type typ.
func (c *Client) SendJSON(typ string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("event not encodable", logger.Fields("client_id", c.id, logger.FieldError, err))
		return false
	}
	return c.Send(Event{Type: typ, Data: data})
}

// Serve writes queued events to w until the request context ends. It sends
// a connected event first and a keep-alive comment every keepAlive.
func Serve(w http.ResponseWriter, r *http.Request, c *Client, keepAlive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		c.log.Debug("write deadline not cleared", logger.Fields("client_id", c.id, logger.FieldError, err))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connected, _ := json.Marshal(map[string]string{"client_id": c.id})
	write(w, 0, Event{Type: EventTypeConnected, Data: connected})
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	var seq int64
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("client disconnected", logger.Fields("client_id", c.id))
			return
		case e := <-c.events:
			seq++
			write(w, seq, e)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func write(w http.ResponseWriter, id int64, e Event) {
	if id > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", id)
	}
	if e.Type != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", e.Type)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", e.Data)
}
