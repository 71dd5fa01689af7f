package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"monotub_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxMsgSize  = 1 << 12 // 4 KB
	updateQueue = 32
)

// Envelope types pushed to the page.
const (
	wsTypeView         = "view"
	wsTypeStatus       = service.KindStatus
	wsTypeChart        = service.KindChart
	wsTypeClock        = service.KindClock
	wsTypeNotification = service.KindNotification
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Live view stream
// @Description  Websocket. Sends {"type":"view"} with the full view first, then status, chart, clock and notification envelopes as they happen.
// @Tags         dashboard
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	// The publisher must not block, so a slow client loses updates and gets
	// a full view once it catches up.
	updates := make(chan service.Update, updateQueue)
	var lagged atomic.Bool
	unsubscribe := h.services.Dashboard.Subscribe(func(u service.Update) {
		select {
		case updates <- u:
		default:
			lagged.Store(true)
		}
	})
	defer unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.writeEnvelope(conn, wsEnvelope{Type: wsTypeView, Data: h.services.Dashboard.View()}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case u := <-updates:
			env := envelopeFor(u)
			if lagged.Swap(false) {
				drainUpdates(updates)
				env = wsEnvelope{Type: wsTypeView, Data: h.services.Dashboard.View()}
			}
			if err := h.writeEnvelope(conn, env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

func envelopeFor(u service.Update) wsEnvelope {
	switch u.Kind {
	case service.KindStatus:
		return wsEnvelope{Type: wsTypeStatus, Data: u.Status}
	case service.KindChart:
		return wsEnvelope{Type: wsTypeChart, Data: u.Chart}
	case service.KindClock:
		return wsEnvelope{Type: wsTypeClock, Data: gin.H{"currentTime": u.CurrentTime}}
	default:
		return wsEnvelope{Type: wsTypeNotification, Data: u.Notification}
	}
}

func drainUpdates(ch <-chan service.Update) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func (h *Handler) writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
