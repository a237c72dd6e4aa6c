// Package telemetry publishes snapshots and control events to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"time"

	"cooling_control"
	"cooling_control/internal/logger"
	"cooling_control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher is a control loop observer. Publishing never waits for the
// broker; while disconnected messages are dropped.
type Publisher struct {
	client mqtt.Client
	prefix string
	log    *logger.Logger
}

// Connect dials the broker. A broker that is down is not fatal: paho keeps
// retrying in the background and the publisher drops messages meanwhile.
func Connect(cfg Config, log *logger.Logger) *Publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnw("mqtt_connection_lost", "broker", cfg.Broker, "err", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Infow("mqtt_connected", "broker", cfg.Broker)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnw("mqtt_connect_pending", "broker", cfg.Broker, "timeout", connectTimeout.String())
	} else if err := token.Error(); err != nil {
		log.Errorw("mqtt_connect_failed", "broker", cfg.Broker, "err", err)
	}
	return NewPublisher(client, cfg.TopicPrefix, log)
}

func NewPublisher(client mqtt.Client, prefix string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{client: client, prefix: prefix, log: log}
}

// ObserveTick publishes the snapshot retained on <prefix>/state.
func (p *Publisher) ObserveTick(s models.Snapshot) {
	p.publish(p.prefix+"/state", true, cooling_control.NewStateResponse(s, s.UpdatedAt))
}

// ObserveEvent publishes the event on <prefix>/events.
func (p *Publisher) ObserveEvent(e models.ControlEvent) {
	p.publish(p.prefix+"/events", false, e)
}

func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}

func (p *Publisher) publish(topic string, retained bool, v any) {
	if !p.client.IsConnectionOpen() {
		p.log.Debugw("mqtt_drop", "topic", topic)
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Errorw("mqtt_marshal_failed", "topic", topic, "err", err)
		return
	}
	p.client.Publish(topic, 0, retained, payload)
}
