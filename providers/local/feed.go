package local

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/redis"
)

const (
	channelPrefix = "glowbook:changes:"
	feedBuffer    = 256
)

// feed fans record changes out to subscribers.
type feed interface {
	publish(ctx context.Context, c cloud.Change)
	subscribe(ctx context.Context, table string, handler func(cloud.Change)) (cloud.Unsubscribe, error)
	close() error
}

// subscription delivers queued changes to its handler on one goroutine.
// Unsubscribe waits for that goroutine to exit, except while a handler is
// running: a handler may unsubscribe itself, and no later change is
// delivered once it returns.
type subscription struct {
	ch       chan cloud.Change
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	handling atomic.Bool
}

func startSubscription(ctx context.Context, handler func(cloud.Change), onStop func()) (*subscription, cloud.Unsubscribe) {
	s := &subscription{
		ch:   make(chan cloud.Change, feedBuffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	unsubscribe := func() {
		s.once.Do(func() {
			onStop()
			close(s.stop)
			if !s.handling.Load() {
				<-s.done
			}
		})
	}
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				go unsubscribe()
				return
			case c := <-s.ch:
				select {
				case <-s.stop:
					return
				default:
				}
				s.handling.Store(true)
				handler(c)
				s.handling.Store(false)
			}
		}
	}()
	return s, unsubscribe
}

// deliver queues c, dropping it when the subscriber is too slow.
func (s *subscription) deliver(c cloud.Change) bool {
	select {
	case s.ch <- c:
		return true
	default:
		return false
	}
}

// memFeed is the in-process feed used without Redis.
type memFeed struct {
	log  *logger.Logger
	mu   sync.Mutex
	next int
	subs map[string]map[int]*subscription
	stop map[int]cloud.Unsubscribe
}

func newMemFeed(log *logger.Logger) *memFeed {
	return &memFeed{log: log, subs: map[string]map[int]*subscription{}, stop: map[int]cloud.Unsubscribe{}}
}

func (f *memFeed) publish(_ context.Context, c cloud.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs[c.Table] {
		if !s.deliver(c) {
			f.log.Warn("change dropped, subscriber queue full", logger.Fields("table", c.Table))
		}
	}
}

func (f *memFeed) subscribe(ctx context.Context, table string, handler func(cloud.Change)) (cloud.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	s, unsubscribe := startSubscription(ctx, handler, func() {
		f.mu.Lock()
		delete(f.subs[table], id)
		delete(f.stop, id)
		f.mu.Unlock()
	})
	if f.subs[table] == nil {
		f.subs[table] = map[int]*subscription{}
	}
	f.subs[table][id] = s
	f.stop[id] = unsubscribe
	return unsubscribe, nil
}

func (f *memFeed) close() error {
	f.mu.Lock()
	stops := make([]cloud.Unsubscribe, 0, len(f.stop))
	for _, s := range f.stop {
		stops = append(stops, s)
	}
	f.mu.Unlock()
	for _, s := range stops {
		s()
	}
	return nil
}

// redisFeed publishes changes on one Redis channel per table so several
// processes sharing the database see each other's writes.
type redisFeed struct {
	client *redis.Client
	log    *logger.Logger
	mu     sync.Mutex
	next   int
	stop   map[int]cloud.Unsubscribe
}

func newRedisFeed(client *redis.Client, log *logger.Logger) *redisFeed {
	return &redisFeed{client: client, log: log, stop: map[int]cloud.Unsubscribe{}}
}

func (f *redisFeed) publish(ctx context.Context, c cloud.Change) {
	if err := f.client.Publish(ctx, channelPrefix+c.Table, c); err != nil {
		f.log.Warn("change not published", logger.Fields("table", c.Table, logger.FieldError, err))
	}
}

func (f *redisFeed) subscribe(ctx context.Context, table string, handler func(cloud.Change)) (cloud.Unsubscribe, error) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.mu.Unlock()

	s, unsubscribe := startSubscription(ctx, handler, func() {})
	stopRedis, err := f.client.Subscribe(ctx, channelPrefix+table, func(payload []byte) {
		var c cloud.Change
		if err := json.Unmarshal(payload, &c); err != nil {
			f.log.Warn("undecodable change", logger.Fields("table", table, logger.FieldError, err))
			return
		}
		if !s.deliver(c) {
			f.log.Warn("change dropped, subscriber queue full", logger.Fields("table", table))
		}
	})
	if err != nil {
		unsubscribe()
		return nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			stopRedis()
			unsubscribe()
			f.mu.Lock()
			delete(f.stop, id)
			f.mu.Unlock()
		})
	}
	f.mu.Lock()
	f.stop[id] = stop
	f.mu.Unlock()
	return stop, nil
}

func (f *redisFeed) close() error {
	f.mu.Lock()
	stops := make([]cloud.Unsubscribe, 0, len(f.stop))
	for _, s := range f.stop {
		stops = append(stops, s)
	}
	f.mu.Unlock()
	for _, s := range stops {
		s()
	}
	return f.client.Close()
}
