package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait         = 5 * time.Second
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	defaultSendBuffer = 64
)

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *ChatRateLimiter

	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func NewSignalWSController(o *orch.Orchestrator, limiter *ChatRateLimiter) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		Limiter:    limiter,
		ReadLimit:  defaultReadLimit,
		PingPeriod: defaultPingPeriod,
		SendBuffer: defaultSendBuffer,
	}
}

// WsSignalConn is one upgraded WebSocket. Only writePump writes to conn.
type WsSignalConn struct {
	id       core.ConnID
	verified domain.UserID
	conn     *websocket.Conn
	send     chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection pumps. The
// identity proven by the auth middleware, if any, travels with the
// connection until the client sends authenticate.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	verified := domain.UserID(c.GetString(auth.ContextUserKey))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.ConnID(uuid.NewString())
	conn := &WsSignalConn{
		id:       sid,
		verified: verified,
		conn:     ws,
		send:     make(chan core.Frame, ctl.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("verified", string(verified)).Msg("new WS connection")

	sess := core.NewMemberSession(sid, conn)
	connCtx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(sess, cancel)

	ctl.sendJSON(conn, connectedOut{Type: core.EventConnected, ConnID: sid})

	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, conn)
}
