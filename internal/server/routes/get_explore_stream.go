package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/skeinhq/skein/backend/pkg/logger"
)

const (
	// Time allowed to write a view to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamSessionHandler pushes every published view of a session over a
// WebSocket. The first message is the current view, after that the
// client receives the newest snapshot whenever it changes, skipping
// intermediate versions it was too slow to read.
func StreamSessionHandler(c echo.Context) error {
	s := lookupSession(c)
	if s == nil {
		return nil
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("[Explore] Failed to upgrade websocket", "session", s.ID(), "err", err)
		return err
	}
	defer ws.Close()
	logger.Info("[Explore] Stream connected", "session", s.ID())

	views, unsubscribe := s.Subscribe()
	defer unsubscribe()

	// Read pump: the client sends no data, but reading is what surfaces
	// close frames and keeps the pong handler running.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			ws.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()

	for {
		select {
		case <-clientGone:
			logger.Info("[Explore] Stream disconnected", "session", s.ID())
			return nil
		case <-s.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
			return nil
		case <-pings.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case view, ok := <-views:
			if !ok {
				return nil
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(view); err != nil {
				logger.Debug("[Explore] Stream write failed", "session", s.ID(), "err", err)
				return nil
			}
		}
	}
}
