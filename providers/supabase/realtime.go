package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
)

const (
	heartbeatInterval = 30 * time.Second
	joinTimeout       = 10 * time.Second
)

// phoenixMessage is a Phoenix channel frame.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type joinReply struct {
	Status   string         `json:"status"`
	Response map[string]any `json:"response"`
}

type changePayload struct {
	Data struct {
		Type      string       `json:"type"`
		Table     string       `json:"table"`
		Record    model.Record `json:"record"`
		OldRecord model.Record `json:"old_record"`
	} `json:"data"`
}

// subscriptions tracks the open realtime channels of a provider.
type subscriptions struct {
	p      *Provider
	dialer *websocket.Dialer

	mu   sync.Mutex
	open map[*channel]struct{}
}

func newSubscriptions(p *Provider) *subscriptions {
	return &subscriptions{
		p:      p,
		dialer: &websocket.Dialer{HandshakeTimeout: joinTimeout},
		open:   make(map[*channel]struct{}),
	}
}

func (s *subscriptions) socketURL() (string, error) {
	u, err := url.Parse(s.p.creds.url)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {s.p.creds.anonKey}, "vsn": {"1.0.0"}}.Encode()
	return u.String(), nil
}

// subscribe opens one websocket per subscription and joins a channel for
// table. The first filter is applied by the server; all filters are checked
// again on delivery.
func (s *subscriptions) subscribe(ctx context.Context, table string, filters cloud.Filters, handler func(cloud.Change)) (cloud.Unsubscribe, error) {
	target, err := s.socketURL()
	if err != nil {
		return nil, errors.InvalidInput("url", err.Error())
	}
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.ConnectionFailed(backend + " realtime").WithCause(err)
	}
	token, _ := s.p.token(ctx)
	ch := &channel{
		conn:    conn,
		topic:   fmt.Sprintf("realtime:%s:%s", s.p.creds.schema, table),
		table:   table,
		filters: filters,
		handler: handler,
		done:    make(chan struct{}),
		log:     s.p.log.WithFields(logger.Fields(logger.FieldTable, table)),
	}
	if err := ch.join(s.p.creds.schema, token); err != nil {
		_ = conn.Close()
		return nil, err
	}

	ch.onClose = func() {
		s.mu.Lock()
		delete(s.open, ch)
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.open[ch] = struct{}{}
	s.mu.Unlock()

	go ch.readLoop()
	go ch.heartbeatLoop()
	go func() {
		select {
		case <-ctx.Done():
			ch.close()
		case <-ch.done:
		}
	}()

	ch.log.Info("realtime subscription started")
	return ch.close, nil
}

func (s *subscriptions) closeAll() {
	s.mu.Lock()
	open := s.open
	s.open = make(map[*channel]struct{})
	s.mu.Unlock()
	for ch := range open {
		ch.close()
	}
}

type channel struct {
	conn    *websocket.Conn
	topic   string
	table   string
	filters cloud.Filters
	handler func(cloud.Change)
	onClose func()
	log     *logger.Logger

	writeMu sync.Mutex
	ref     atomic.Int64
	once    sync.Once
	done    chan struct{}
}

func (c *channel) send(event string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	ref := strconv.FormatInt(c.ref.Add(1), 10)
	topic := c.topic
	if event == "heartbeat" {
		topic = "phoenix"
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(joinTimeout))
	return ref, c.conn.WriteJSON(phoenixMessage{Topic: topic, Event: event, Payload: data, Ref: &ref})
}

// join sends phx_join and waits for the server's reply.
func (c *channel) join(schema, token string) error {
	change := map[string]string{"event": "*", "schema": schema, "table": c.table}
	if f := serverFilter(c.filters); f != "" {
		change["filter"] = f
	}
	payload := map[string]any{
		"config": map[string]any{
			"broadcast":        map[string]bool{"self": false},
			"presence":         map[string]string{"key": ""},
			"postgres_changes": []map[string]string{change},
		},
	}
	if token != "" {
		payload["access_token"] = token
	}
	ref, err := c.send("phx_join", payload)
	if err != nil {
		return errors.ConnectionFailed(backend + " realtime").WithCause(err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(joinTimeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	for {
		var msg phoenixMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return errors.ConnectionFailed(backend + " realtime").WithCause(err)
		}
		if msg.Event != "phx_reply" || msg.Ref == nil || *msg.Ref != ref {
			continue
		}
		var reply joinReply
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return errors.ExternalServiceError(backend, err)
		}
		if reply.Status != "ok" {
			return errors.ExternalServiceError(backend, fmt.Errorf("join %s: %s %v", c.topic, reply.Status, reply.Response))
		}
		return nil
	}
}

func (c *channel) readLoop() {
	defer c.close()
	for {
		var msg phoenixMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn("realtime connection lost", logger.Fields(logger.FieldError, err))
			}
			return
		}
		switch msg.Event {
		case "postgres_changes":
			c.deliver(msg.Payload)
		case "phx_error", "phx_close":
			c.log.Warn("realtime channel closed by server", logger.Fields("event", msg.Event))
			return
		}
	}
}

func (c *channel) deliver(raw json.RawMessage) {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.log.Warn("undecodable realtime payload", logger.Fields(logger.FieldError, err))
		return
	}
	change := cloud.Change{
		Type:  cloud.ChangeType(strings.ToUpper(p.Data.Type)),
		Table: p.Data.Table,
	}
	if change.Table == "" {
		change.Table = c.table
	}
	if len(p.Data.Record) > 0 {
		change.Record = domain.CamelRecord(p.Data.Record)
	}
	if len(p.Data.OldRecord) > 0 {
		change.Old = domain.CamelRecord(p.Data.OldRecord)
	}
	subject := change.Record
	if subject == nil {
		subject = change.Old
	}
	if !matches(subject, c.filters) {
		return
	}
	c.handler(change)
}

func (c *channel) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if _, err := c.send("heartbeat", map[string]any{}); err != nil {
				c.log.Warn("realtime heartbeat failed", logger.Fields(logger.FieldError, err))
				c.close()
				return
			}
		}
	}
}

func (c *channel) close() {
	c.once.Do(func() {
		close(c.done)
		_, _ = c.send("phx_leave", map[string]any{})
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// serverFilter renders the first filter, by key order, as a realtime filter.
func serverFilter(filters cloud.Filters) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	first := keys[0]
	for _, k := range keys[1:] {
		if k < first {
			first = k
		}
	}
	return domain.ToSnake(first) + "=eq." + literal(filters[first])
}

func matches(rec model.Record, filters cloud.Filters) bool {
	for k, want := range filters {
		if literal(rec[k]) != literal(want) {
			return false
		}
	}
	return true
}
