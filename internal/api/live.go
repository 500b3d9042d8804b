package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/observability"
	"options-position-lab/internal/storage"
)

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	liveSendBuffer = 64
	livePingEvery  = 45 * time.Second
	liveReadWindow = 90 * time.Second
)

// liveUpdate is one snapshot summary pushed to websocket clients.
type liveUpdate struct {
	Timestamp       time.Time `json:"timestamp"`
	TotalPnL        float64   `json:"total_pnl"`
	PositionCount   int       `json:"position_count"`
	UnderlyingPrice *float64  `json:"underlying_price"`
}

type liveClient struct {
	conn *websocket.Conn
	out  chan liveUpdate
	done chan struct{}
}

// liveHub tails the current day's store and fans new rows out to every
// connected websocket client. Rows landing while nobody is connected are
// consumed silently, so a client sees only what happens after it joins.
type liveHub struct {
	store  storage.SnapshotReader
	logger zerolog.Logger
	poll   time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	clients map[*liveClient]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newLiveHub(store storage.SnapshotReader, logger zerolog.Logger, poll time.Duration, now func() time.Time) *liveHub {
	return &liveHub{
		store:   store,
		logger:  logger,
		poll:    poll,
		now:     now,
		clients: make(map[*liveClient]struct{}),
		done:    make(chan struct{}),
	}
}

func (h *liveHub) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.run(ctx)
}

func (h *liveHub) stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// run is the tail loop. lastID resets at the day boundary; a day with no
// store yet reads as not found and simply means nothing to push.
func (h *liveHub) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	var day string
	var lastID int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		today := domain.FormatDay(h.now())
		if today != day {
			day, lastID = today, 0
		}

		snaps, err := h.store.ReadDayAfter(ctx, day, lastID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, context.Canceled) {
				h.logger.Warn().Err(err).Str("day", day).Msg("live tail read failed")
			}
			continue
		}
		for _, snap := range snaps {
			lastID = snap.ID
			h.broadcast(toLiveUpdate(snap))
		}
	}
}

// broadcast queues an update on every client. A client whose buffer is full
// drops the update rather than stalling the tail.
func (h *liveHub) broadcast(u liveUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.out <- u:
		default:
		}
	}
}

// serve upgrades the request and runs the connection until the client goes
// away. The writer goroutine owns all writes on the socket; the read loop
// exists to notice the close.
func (h *liveHub) serve(c *gin.Context) {
	conn, err := liveUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	cl := &liveClient{conn: conn, out: make(chan liveUpdate, liveSendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	observability.WSClientConnected()

	go func() {
		ping := time.NewTicker(livePingEvery)
		defer ping.Stop()
		for {
			select {
			case u := <-cl.out:
				if err := conn.WriteJSON(u); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			case <-cl.done:
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(liveReadWindow))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(liveReadWindow))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(cl.done)
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	observability.WSClientDisconnected()
}

func toLiveUpdate(snap *domain.Snapshot) liveUpdate {
	u := liveUpdate{
		Timestamp:     snap.Timestamp,
		TotalPnL:      snap.TotalPnL,
		PositionCount: len(snap.Positions),
	}
	if len(snap.Positions) > 0 {
		price := snap.Positions[0].UnderlyingPrice
		u.UnderlyingPrice = &price
	}
	return u
}
