package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	coremon "github.com/yaswanthhh/ev-charge-optimizer/core/monitoring"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/station"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// ErrNotConnected is returned when a command is sent while the broker link
// is down.
var ErrNotConnected = errors.New("mqtt: broker not connected")

// Registrar receives the connection handles of MQTT stations.
type Registrar interface {
	Register(id string, c station.Conn) station.Conn
	Release(id string, c station.Conn) bool
}

// InboundHandler consumes frames sent by a station.
type InboundHandler interface {
	HandleInbound(id string, data []byte, at time.Time) (ocpp.Inbound, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Bridge maps station presence announcements on the broker to registry
// entries and relays commands and acknowledgments.
type Bridge struct {
	cli     pahoClient
	cfg     Config
	reg     Registrar
	inbound InboundHandler
	logger  logger.Logger
	backoff time.Duration

	mu    sync.Mutex
	conns map[string]*stationConn
	bus   *eventbus.Bus[events.Event]
}

// NewBridge connects to the broker and subscribes to the status and event
// topics of every station under the configured prefix.
func NewBridge(cfg Config, reg Registrar, inbound InboundHandler) (*Bridge, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_bridge")
	b := &Bridge{
		cfg:     cfg,
		reg:     reg,
		inbound: inbound,
		logger:  log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		conns:   make(map[string]*stationConn),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		b.subscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	b.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return b, nil
}

// SetEventBus configures the bus receiving station presence events.
func (b *Bridge) SetEventBus(bus *eventbus.Bus[events.Event]) {
	b.mu.Lock()
	b.bus = bus
	b.mu.Unlock()
}

func (b *Bridge) subscribe(c pahoClient) {
	subs := []struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}{
		{b.topic("+", "status"), b.cfg.qos("status"), b.onStatus},
		{b.topic("+", "events"), b.cfg.qos("events"), b.onEvent},
	}
	for _, s := range subs {
		if token := c.Subscribe(s.topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
			b.logger.Errorf("subscribe %s: %v", s.topic, token.Error())
		}
	}
}

func (b *Bridge) topic(id, kind string) string {
	return b.cfg.TopicPrefix + "/" + id + "/" + kind
}

// stationFromTopic extracts the station id of <prefix>/<id>/<kind>.
func (b *Bridge) stationFromTopic(topic, kind string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.cfg.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	id, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != kind || model.ValidateChargerID(id) != nil {
		return "", false
	}
	return id, true
}

func (b *Bridge) onStatus(_ paho.Client, msg paho.Message) {
	id, ok := b.stationFromTopic(msg.Topic(), "status")
	if !ok {
		b.logger.Debugf("ignoring status on %s", msg.Topic())
		return
	}
	switch strings.TrimSpace(strings.ToLower(string(msg.Payload()))) {
	case statusOnline:
		b.online(id)
	case statusOffline:
		b.offline(id)
	default:
		b.logger.Debugf("station %s: unknown status %q", id, msg.Payload())
	}
}

func (b *Bridge) online(id string) {
	conn := &stationConn{bridge: b, id: id}
	b.mu.Lock()
	b.conns[id] = conn
	b.mu.Unlock()
	if prev := b.reg.Register(id, conn); prev != nil {
		if err := prev.Close(); err != nil {
			b.logger.Warnf("station %s: closing replaced connection: %v", id, err)
		}
	}
	b.logger.Infof("station %s online", id)
	b.publishEvent(id, true)
}

func (b *Bridge) offline(id string) {
	b.mu.Lock()
	conn, ok := b.conns[id]
	delete(b.conns, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	if b.reg.Release(id, conn) {
		b.logger.Infof("station %s offline", id)
		b.publishEvent(id, false)
	}
}

func (b *Bridge) publishEvent(id string, connected bool) {
	b.mu.Lock()
	bus := b.bus
	b.mu.Unlock()
	if bus != nil {
		bus.Publish(events.StationEvent{StationID: id, Transport: "mqtt", Connected: connected, Time: time.Now()})
	}
}

func (b *Bridge) onEvent(_ paho.Client, msg paho.Message) {
	id, ok := b.stationFromTopic(msg.Topic(), "events")
	if !ok {
		b.logger.Debugf("ignoring event on %s", msg.Topic())
		return
	}
	in, err := b.inbound.HandleInbound(id, msg.Payload(), time.Now())
	if err != nil {
		b.logger.Debugf("station %s: dropping frame: %v", id, err)
		return
	}
	b.logger.Debugw("station frame", map[string]any{"station_id": id, "kind": in.Kind.String(), "type": in.Type})
}

// publish sends payload with exponential backoff between attempts. It gives
// up early when ctx ends.
func (b *Bridge) publish(ctx context.Context, id string, payload []byte) error {
	if !b.cli.IsConnected() {
		return ErrNotConnected
	}
	topic := b.topic(id, "command")
	var publishErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		token := b.cli.Publish(topic, b.cfg.qos("command"), false, payload)
		select {
		case <-token.Done():
			publishErr = token.Error()
		case <-ctx.Done():
			publishErr = ctx.Err()
		}
		if publishErr == nil {
			b.logger.Debugf("sent frame to %s", topic)
			return nil
		}
		b.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if ctx.Err() != nil || attempt == b.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(b.backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"station_id": id, "module": "mqtt"})
	return fmt.Errorf("publish to %s: %w", topic, publishErr)
}

// Close releases every MQTT station and disconnects from the broker.
func (b *Bridge) Close() {
	b.mu.Lock()
	conns := b.conns
	b.conns = make(map[string]*stationConn)
	b.mu.Unlock()
	for id, c := range conns {
		b.reg.Release(id, c)
	}
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

// stationConn is the registry handle of an MQTT station.
type stationConn struct {
	bridge *Bridge
	id     string
}

func (c *stationConn) Send(ctx context.Context, frame []byte) error {
	return c.bridge.publish(ctx, c.id, frame)
}

// Close forgets the station locally. The station itself stays connected to
// the broker.
func (c *stationConn) Close() error {
	c.bridge.mu.Lock()
	if cur, ok := c.bridge.conns[c.id]; ok && cur == c {
		delete(c.bridge.conns, c.id)
	}
	c.bridge.mu.Unlock()
	return nil
}
