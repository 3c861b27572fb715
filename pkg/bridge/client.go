// Package bridge connects the tour core to the companion app running on
// the robot. Commands go out and status events come back over a single
// WebSocket using a small JSON envelope.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/robot"
)

// ErrNotConnected is returned by commands issued while the link is down.
var ErrNotConnected = errors.New("bridge: not connected")

// Config holds bridge settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	Logger         *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		URL:            "ws://127.0.0.1:8765/bridge",
		ReconnectDelay: 2 * time.Second,
		WriteTimeout:   5 * time.Second,
		PingInterval:   15 * time.Second,
		ReadTimeout:    60 * time.Second,
	}
}

// Client is a robot.Controller that speaks to the robot over WebSocket
// and writes the robot's events into a robot.State.
type Client struct {
	cfg   Config
	state *robot.State
	log   *slog.Logger

	wsMu      sync.Mutex
	ws        *websocket.Conn
	connected atomic.Bool
}

var _ robot.Controller = (*Client)(nil)

// New creates a bridge client. Call Run to connect.
func New(state *robot.State, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:   cfg,
		state: state,
		log:   logger.With("component", "bridge", "url", cfg.URL),
	}
}

// Connected reports whether the WebSocket is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("bridge disconnected, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session dials once and pumps events until the connection drops.
func (c *Client) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()
	c.connected.Store(true)
	metrics.BridgeConnected.Set(1)
	c.log.Info("bridge connected")

	done := make(chan struct{})
	go c.keepAlive(ctx, ws, done)
	defer func() {
		close(done)
		c.connected.Store(false)
		metrics.BridgeConnected.Set(0)
		c.wsMu.Lock()
		c.ws = nil
		c.wsMu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		msg, err := ParseMessage(data)
		if err != nil {
			c.log.Warn("dropping malformed event", "error", err)
			continue
		}
		if err := c.apply(msg); err != nil {
			c.log.Warn("dropping event", "type", msg.Type, "error", err)
		}
	}
}

// keepAlive pings the peer and closes the socket when ctx ends so the
// read loop unblocks.
func (c *Client) keepAlive(ctx context.Context, ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			ws.Close()
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// apply writes one event into the robot state.
func (c *Client) apply(msg *Message) error {
	metrics.BridgeEvents.WithLabelValues(string(msg.Type)).Inc()

	switch msg.Type {
	case TypeTTS:
		var d StatusData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetTTS(robot.ParseTTSStatus(d.Status))

	case TypeLocation:
		var d StatusData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetLocation(d.Location, robot.LocationStatus(d.Status))

	case TypeMovement:
		var d StatusData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetMovement(robot.MovementStatus(d.Status))

	case TypeBeWithMe:
		var d StatusData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetFollow(robot.FollowState(d.Status))

	case TypeDetectionState:
		var d DetectionStateData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetDetection(robot.DetectionState(d.State))

	case TypeDetectionData:
		var d DetectionData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetSample(robot.DetectionSample{Angle: d.Angle, Distance: d.Distance})

	case TypeLifted, TypeDragged, TypeConversationAttached:
		var d FlagData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		switch msg.Type {
		case TypeLifted:
			c.state.SetLifted(d.Value)
		case TypeDragged:
			c.state.SetDragged(d.Value)
		default:
			c.state.SetAttached(d.Value)
		}

	case TypeASR:
		var d ASRData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetSpeech(d.Text)

	case TypeYaw:
		var d YawData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetYaw(d.Yaw)

	case TypeLocations:
		var d LocationsData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		c.state.SetLocations(d.Names)

	default:
		return fmt.Errorf("unknown event type %q", msg.Type)
	}
	return nil
}

// send writes one command.
func (c *Client) send(t MessageType, data any) error {
	msg, err := NewMessage(t, data)
	if err != nil {
		return err
	}
	b, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("bridge: send %s: %w", t, err)
	}
	return nil
}

func (c *Client) Speak(text string, showFace bool) error {
	return c.send(TypeSpeak, SpeakData{Text: text, ShowFace: showFace})
}

func (c *Client) GoTo(location string, backwards bool) error {
	return c.send(TypeGoTo, GoToData{Location: location, Backwards: backwards})
}

func (c *Client) StopMovement() error {
	return c.send(TypeStopMovement, nil)
}

func (c *Client) SetGoToSpeed(level robot.SpeedLevel) error {
	return c.send(TypeGoToSpeed, SpeedData{Level: string(level)})
}

func (c *Client) SkidJoy(x, y float64) error {
	return c.send(TypeSkidJoy, JoystickData{X: x, Y: y})
}

func (c *Client) RequestLocations() error {
	return c.send(TypeListLocations, nil)
}

func (c *Client) TurnBy(degrees int, speed float64) error {
	return c.send(TypeTurnBy, TurnData{Degrees: degrees, Speed: speed})
}

func (c *Client) TiltAngle(degrees int, speed float64) error {
	return c.send(TypeTilt, TurnData{Degrees: degrees, Speed: speed})
}

func (c *Client) WakeUp() error {
	return c.send(TypeWakeUp, nil)
}

func (c *Client) FinishConversation() error {
	return c.send(TypeFinishConversation, nil)
}

func (c *Client) SetMainButtonMode(enabled bool) error {
	return c.send(TypeMainButton, ToggleData{Enabled: enabled})
}

func (c *Client) SetCliffSensorOn(on bool) error {
	return c.send(TypeCliffSensor, ToggleData{Enabled: on})
}

func (c *Client) SetVolume(level int) error {
	return c.send(TypeVolume, VolumeData{Level: level})
}
