package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	cacheredis "github.com/alanyoungcy/spreadbot/internal/cache/redis"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

const (
	wsReadLimit      = 1 << 20
	wsPongWait       = 60 * time.Second
	wsReconnectDelay = 2 * time.Second
)

// wsMessage is the envelope the discovery service pushes on its WebSocket:
// a full replacement snapshot per message.
type wsMessage struct {
	Type string               `json:"type"`
	Data []domain.Opportunity `json:"data"`
}

// WSFeed subscribes to the discovery service's WebSocket and caches the most
// recent snapshot. Opportunities serves from that cache, so the scheduler
// never blocks on the socket. Reconnects with a fixed delay on disconnect.
type WSFeed struct {
	url    string
	maxAge time.Duration
	logger *slog.Logger

	// mirror, when set, republishes each snapshot to Redis so operators
	// and other instances can read the latest scan.
	mirror *cacheredis.OpportunityCache

	mu        sync.RWMutex
	latest    []domain.Opportunity
	updatedAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSFeed creates a feed for the given ws:// or wss:// URL. maxAge bounds
// how old a cached snapshot may be before the feed reports itself
// unavailable.
func NewWSFeed(url string, maxAge time.Duration, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:    url,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "ws_feed")),
		done:   make(chan struct{}),
	}
}

// SetMirror enables republishing snapshots to the given cache.
func (f *WSFeed) SetMirror(cache *cacheredis.OpportunityCache) {
	f.mirror = cache
}

// Opportunities returns the latest pushed snapshot. It fails with
// domain.ErrFeedUnavailable when no snapshot has arrived within maxAge.
func (f *WSFeed) Opportunities(ctx context.Context) ([]domain.Opportunity, error) {
	f.mu.RLock()
	latest, updatedAt := f.latest, f.updatedAt
	f.mu.RUnlock()

	if updatedAt.IsZero() {
		return nil, domain.ErrFeedUnavailable
	}
	if f.maxAge > 0 && time.Since(updatedAt) > f.maxAge {
		return nil, fmt.Errorf("snapshot is %s old: %w", time.Since(updatedAt).Round(time.Second), domain.ErrFeedUnavailable)
	}

	out := make([]domain.Opportunity, len(latest))
	copy(out, latest)
	return out, nil
}

// Run connects and consumes snapshots until ctx is cancelled or Close is
// called. Reconnects with a fixed delay on disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(wsReconnectDelay):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	f.logger.Info("feed connected", slog.String("url", f.url))

	// Close the socket when the context goes away so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-f.done:
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		f.handleMessage(ctx, data)
	}
}

func (f *WSFeed) handleMessage(ctx context.Context, data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug("undecodable feed message", slog.String("error", err.Error()), slog.Int("payload_len", len(data)))
		return
	}
	if msg.Type != "" && msg.Type != "opportunities" {
		return
	}

	f.mu.Lock()
	f.latest = msg.Data
	f.updatedAt = time.Now().UTC()
	f.mu.Unlock()

	f.logger.Debug("snapshot received", slog.Int("opportunities", len(msg.Data)))

	if f.mirror != nil {
		if err := f.mirror.Set(ctx, msg.Data, f.maxAge); err != nil {
			f.logger.Warn("snapshot mirror failed", slog.String("error", err.Error()))
		}
	}
}

// Close stops the feed permanently.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

var _ domain.OpportunityFeed = (*WSFeed)(nil)
