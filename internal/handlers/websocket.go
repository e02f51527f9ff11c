package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"returnbox_back_end/internal/events"
	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.Origins) == 0 {
				return true
			}
			for _, o := range h.Origins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
}

// Stream pousse les changements de demandes et de session au navigateur.
// Le marchand reçoit ses demandes, le client celles de son email.
func (h *Handler) Stream(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if !h.Bus.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temps réel indisponible"})
		return
	}

	channels := []string{events.SessionChannel(sess.UserID)}
	if sess.Role == models.RoleMerchant {
		channels = append(channels, events.MerchantChannel(sess.UserID))
	} else {
		channels = append(channels, events.CustomerChannel(sess.Email))
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	pubsub := h.Bus.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// lecture : uniquement pour détecter la fermeture et les pongs
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.WriteJSON(gin.H{"type": "connected", "channels": channels})
	zap.S().Infof("🔌 WebSocket ouvert pour %s", sess.UserID)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	msgs := pubsub.Channel()

	for {
		select {
		case <-closed:
			zap.S().Infof("🔌 WebSocket fermé pour %s", sess.UserID)
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			payload, err := events.Decode(msg)
			if err != nil {
				zap.S().Warnf("⚠️ Message illisible sur %s: %v", msg.Channel, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": "change", "channel": msg.Channel, "data": payload}); err != nil {
				return
			}
			if ev, ok := payload.(events.SessionEvent); ok && ev.Type == events.SessionSignedOut {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed_out"))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
