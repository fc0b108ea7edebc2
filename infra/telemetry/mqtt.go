// Package telemetry feeds live driver positions from the MQTT broker into the
// track store and the map bridge.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dispatchkit/dispatchboard/core/mapsync"
	"github.com/dispatchkit/dispatchboard/core/model"
	"github.com/dispatchkit/dispatchboard/core/track"
	"github.com/dispatchkit/dispatchboard/infra/logger"
)

// Config defines the connection parameters for the telemetry subscriber.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies standard subscriber parameters.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "dispatchboard"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "drivers/position"
	}
}

// Position is the wire format published by driver devices.
type Position struct {
	DriverID  int64   `json:"driver_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Progress  float64 `json:"progress"`
	Timestamp int64   `json:"ts"`
}

// DecodePosition parses one telemetry payload.
func DecodePosition(payload []byte) (Position, error) {
	var p Position
	if err := json.Unmarshal(payload, &p); err != nil {
		return Position{}, fmt.Errorf("decode position: %w", err)
	}
	if p.DriverID <= 0 {
		return Position{}, fmt.Errorf("decode position: missing driver_id")
	}
	return p, nil
}

// At returns the sample time, falling back to now when the device sent none.
func (p Position) At() time.Time {
	if p.Timestamp == 0 {
		return time.Now()
	}
	return time.UnixMilli(p.Timestamp)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Manager subscribes to the driver position topic and applies each sample to
// the track store and the map bridge.
type Manager struct {
	cli    pahoClient
	cfg    Config
	log    logger.Logger
	tracks track.Store
	bridge *mapsync.Bridge
}

// NewManager connects to the broker and subscribes to <prefix>/+. The bridge
// may be nil when no map surface is attached.
func NewManager(cfg Config, tracks track.Store, bridge *mapsync.Bridge) (*Manager, error) {
	cfg.SetDefaults()
	log := logger.New("telemetry")
	m := &Manager{cfg: cfg, log: log, tracks: tracks, bridge: bridge}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID + "-" + uuid.NewString()[:8])
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		topic := cfg.TopicPrefix + "/+"
		if token := c.Subscribe(topic, cfg.QoS, m.onPosition); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m.cli = c
	return m, nil
}

func (m *Manager) onPosition(_ paho.Client, msg paho.Message) {
	p, err := DecodePosition(msg.Payload())
	if err != nil {
		m.log.Errorf("telemetry on %s: %v", msg.Topic(), err)
		return
	}
	m.Apply(p)
}

// Apply records the sample and repositions the driver marker.
func (m *Manager) Apply(p Position) {
	pos := model.Point{Lon: p.Longitude, Lat: p.Latitude}
	m.tracks.Record(p.DriverID, pos, p.Progress, p.At())
	if m.bridge != nil {
		m.bridge.MoveDriver(p.DriverID, pos)
	}
	m.log.Debugw("position applied", map[string]any{
		"driver_id": p.DriverID,
		"progress":  p.Progress,
	})
}

// Disconnect gracefully closes the MQTT connection.
func (m *Manager) Disconnect() {
	if m.cli != nil && m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}
