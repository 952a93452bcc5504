// Package ws accepts station connections over WebSocket and feeds their
// frames to the acknowledgment ledger.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/station"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

// Registrar receives the connection handles of WebSocket stations.
type Registrar interface {
	Register(id string, c station.Conn) station.Conn
	Release(id string, c station.Conn) bool
}

// InboundHandler consumes frames sent by a station.
type InboundHandler interface {
	HandleInbound(id string, data []byte, at time.Time) (ocpp.Inbound, error)
}

// Options tunes the connection handling. Zero values take defaults.
type Options struct {
	WriteTimeout time.Duration
	// PingInterval enables keepalive pings. A station missing two pongs in a
	// row is dropped.
	PingInterval time.Duration
	ReadLimit    int64
}

func (o *Options) setDefaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
}

// Handler upgrades GET /ocpp/{chargerId} requests and owns the resulting
// station connections.
type Handler struct {
	reg      Registrar
	inbound  InboundHandler
	opts     Options
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu  sync.RWMutex
	bus *eventbus.Bus[events.Event]
}

// NewHandler creates a handler registering stations in reg.
func NewHandler(reg Registrar, inbound InboundHandler, opts Options) *Handler {
	opts.setDefaults()
	return &Handler{
		reg:     reg,
		inbound: inbound,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// stations are not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.New("ws"),
	}
}

// SetEventBus configures the bus receiving station presence events.
func (h *Handler) SetEventBus(bus *eventbus.Bus[events.Event]) {
	h.mu.Lock()
	h.bus = bus
	h.mu.Unlock()
}

// ServeHTTP validates the station id, upgrades the connection and runs the
// read loop until the station goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("chargerId")
	if err := model.ValidateChargerID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("station %s: upgrade failed: %v", id, err)
		return
	}
	conn := newStationConn(id, ws, h.opts.WriteTimeout)
	if prev := h.reg.Register(id, conn); prev != nil {
		if err := prev.Close(); err != nil {
			h.logger.Debugf("station %s: closing replaced connection: %v", id, err)
		}
	}
	h.logger.Infof("station %s connected from %s", id, r.RemoteAddr)
	h.publish(id, true)
	h.readPump(conn)
}

func (h *Handler) readPump(c *stationConn) {
	defer func() {
		if h.reg.Release(c.id, c) {
			h.logger.Infof("station %s disconnected", c.id)
			h.publish(c.id, false)
		}
		_ = c.Close()
	}()
	c.ws.SetReadLimit(h.opts.ReadLimit)
	if h.opts.PingInterval > 0 {
		wait := 2 * h.opts.PingInterval
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
		go c.keepalive(h.opts.PingInterval)
	}
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("station %s: read: %v", c.id, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		in, err := h.inbound.HandleInbound(c.id, data, time.Now())
		if err != nil {
			h.logger.Debugf("station %s: dropping frame: %v", c.id, err)
			continue
		}
		h.logger.Debugw("station frame", map[string]any{"station_id": c.id, "kind": in.Kind.String(), "type": in.Type})
	}
}

func (h *Handler) publish(id string, connected bool) {
	h.mu.RLock()
	bus := h.bus
	h.mu.RUnlock()
	if bus != nil {
		bus.Publish(events.StationEvent{StationID: id, Transport: "ws", Connected: connected, Time: time.Now()})
	}
}

// stationConn is the registry handle of a WebSocket station. Writes are
// serialized; Close may be called from any goroutine.
type stationConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newStationConn(id string, ws *websocket.Conn, writeTimeout time.Duration) *stationConn {
	return &stationConn{id: id, ws: ws, writeTimeout: writeTimeout, done: make(chan struct{})}
}

// Send writes frame as a text message. The write deadline is the earlier of
// the ctx deadline and the configured write timeout.
func (c *stationConn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *stationConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *stationConn) keepalive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}
