package httpserver

import (
	"net/http"
	"time"

	"github.com/clearway/settle/internal/events"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// EventFeed streams engine events to websocket clients. Each client gets
// its own bus subscription; a slow client only drops its own events.
type EventFeed struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventFeed creates a websocket feed over the event bus.
func NewEventFeed(bus *events.Bus, logger *zap.Logger) *EventFeed {
	return &EventFeed{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// HandleWS handles GET /ws/events.
func (f *EventFeed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}

	f.logger.Info("ws-client-connected", zap.String("remote", conn.RemoteAddr().String()))

	sub := f.bus.Subscribe()
	done := make(chan struct{})

	// Reader only watches for the client closing the connection.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go f.writeLoop(conn, sub, done)
}

func (f *EventFeed) writeLoop(conn *websocket.Conn, sub <-chan *events.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		f.logger.Info("ws-client-disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-sub:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bus closed"))
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				f.logger.Error("ws-event-marshal-failed", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
