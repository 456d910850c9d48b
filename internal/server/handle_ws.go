package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// handleSessionFeed pushes the session's events over a websocket. Client
// messages are read and discarded so close frames are noticed.
func handleSessionFeed(broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		sub := broker.Subscribe(sess.ID)
		defer broker.Unsubscribe(sub)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()
		ctx = conn.CloseRead(ctx)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket feed ended", "session_id", sess.ID, "error", ctx.Err())
				return
			case f := <-sub.C:
				if err := conn.Write(ctx, websocket.MessageText, f.Data); err != nil {
					logger.Debug("websocket write failed", "session_id", sess.ID, "error", err)
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					logger.Debug("websocket ping failed", "session_id", sess.ID, "error", err)
					return
				}
			}
		}
	}
}
