// Package redis wraps go-redis for the pub/sub change feed of the local
// provider.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/glowbook/logger"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *goredis.Client
	log *logger.Logger
	cfg Config
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	c := &Client{rdb: rdb, log: log.WithComponent("redis"), cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	c.log.Info("redis connected", logger.Fields("addr", cfg.Addr, "db", cfg.DB))
	return c, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Publish JSON-encodes payload and publishes it on channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.rdb.Publish(ctx, channel, data).Err()
}

// Subscribe delivers every message published on channel to handler until
// the returned stop function is called or ctx is done. It returns once the
// subscription is confirmed by the server.
func (c *Client) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (func(), error) {
	sub := c.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}, nil
}

// Close closes the client.
func (c *Client) Close() error {
	return c.rdb.Close()
}
