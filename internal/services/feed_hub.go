package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"transitwatch/internal/models"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// ReportsChannel is the redis channel carrying report change events
	ReportsChannel = "transitwatch:reports"

	writeWait = 10 * time.Second
)

// FeedMessage is a message pushed to live feed subscribers
type FeedMessage struct {
	Type    string          `json:"type"`
	Reports []models.Report `json:"reports"`
	Message string          `json:"message,omitempty"`
}

// SnapshotLoader loads the report collection in feed order
type SnapshotLoader interface {
	ListRecent(ctx context.Context) ([]models.Report, error)
}

type feedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *feedConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// FeedHub manages live feed WebSocket connections. Every change to the
// report collection results in a full snapshot sent to all subscribers.
type FeedHub struct {
	mu    sync.RWMutex
	conns map[string]*feedConn

	// sendMu is held from snapshot load until delivery, so subscribers
	// never receive an older snapshot after a newer one.
	sendMu sync.Mutex
	loader SnapshotLoader
	redis  *redis.Client
}

// NewFeedHub creates a new feed hub. With a redis client, change events
// are fanned out through ReportsChannel so that every instance refreshes
// its own subscribers; without one they are handled in-process.
func NewFeedHub(loader SnapshotLoader, redisClient *redis.Client) *FeedHub {
	return &FeedHub{
		conns:  make(map[string]*feedConn),
		loader: loader,
		redis:  redisClient,
	}
}

// Register adds a subscriber connection
func (h *FeedHub) Register(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.conns[id]; ok {
		existing.conn.Close()
	}
	h.conns[id] = &feedConn{conn: conn}

	log.Info().Str("conn_id", id).Int("subscribers", len(h.conns)).Msg("Feed subscriber registered")
}

// Unregister removes and closes a subscriber connection
func (h *FeedHub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.conns[id]; ok {
		c.conn.Close()
		delete(h.conns, id)
		log.Info().Str("conn_id", id).Msg("Feed subscriber unregistered")
	}
}

// Count returns the number of connected subscribers
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SendSnapshot sends the current collection to one subscriber
func (h *FeedHub) SendSnapshot(ctx context.Context, id string) error {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("subscriber %s is not connected", id)
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	data, err := h.snapshot(ctx)
	if err != nil {
		return err
	}

	if err := c.write(data); err != nil {
		h.Unregister(id)
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	return nil
}

// Broadcast loads the collection once and sends it to every subscriber
func (h *FeedHub) Broadcast(ctx context.Context) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	data, err := h.snapshot(ctx)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make(map[string]*feedConn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.write(data); err != nil {
			log.Error().Err(err).Str("conn_id", id).Msg("Failed to send snapshot")
			h.Unregister(id)
		}
	}

	log.Debug().Int("subscribers", len(targets)).Msg("Feed snapshot broadcast")
	return nil
}

func (h *FeedHub) snapshot(ctx context.Context) ([]byte, error) {
	reports, err := h.loader.ListRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if reports == nil {
		reports = []models.Report{}
	}

	data, err := json.Marshal(FeedMessage{Type: "snapshot", Reports: reports})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// PublishReportsChanged announces a change to the report collection
func (h *FeedHub) PublishReportsChanged(ctx context.Context) error {
	if h.redis == nil {
		return h.Broadcast(ctx)
	}
	if err := h.redis.Publish(ctx, ReportsChannel, "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Run listens for change events until ctx is done
func (h *FeedHub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return nil
	}

	sub := h.redis.Subscribe(ctx, ReportsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", ReportsChannel, err)
	}

	log.Info().Str("channel", ReportsChannel).Msg("Listening for report changes")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if err := h.Broadcast(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to broadcast snapshot")
			}
		}
	}
}

// Close disconnects every subscriber
func (h *FeedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.conns {
		c.conn.Close()
		delete(h.conns, id)
	}
}
