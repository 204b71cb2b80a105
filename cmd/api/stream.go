package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cryptotrack/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from a different origin; CORS policy is handled
	// at the middleware layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamInterval = 15 * time.Second

// GET /api/stream — pushes snapshot refreshes over a websocket until
// the client disconnects.
func streamHandler(svc snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// Drain reads so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(streamInterval)
		defer ticker.Stop()

		for {
			entries, err := svc.Snapshot(r.Context())
			if err != nil {
				logger.Log.Warn("stream snapshot failed", zap.Error(err))
			} else {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(map[string]interface{}{"data": entries}); err != nil {
					return
				}
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
