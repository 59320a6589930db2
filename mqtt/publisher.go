package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icewatch/ice-monitor/config"
	"github.com/icewatch/ice-monitor/logger"
	"github.com/icewatch/ice-monitor/notify"
)

// Publisher mirrors composed alerts onto an MQTT broker so dashboards
// and other integrations can consume them alongside email delivery.
type Publisher struct {
	client      mqtt.Client
	config      config.MQTTConfig
	topicPrefix string
}

// NewPublisher creates an alert publisher from the MQTT configuration
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address cannot be empty")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("ice-monitor-%d", time.Now().Unix())
	}
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	return &Publisher{
		client:      mqtt.NewClient(opts),
		config:      cfg,
		topicPrefix: cfg.TopicPrefix,
	}, nil
}

// Connect connects to the MQTT broker
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection to MQTT broker timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("connected to MQTT broker: %s", p.config.Broker)
	return nil
}

// PublishAlert publishes one alert as JSON to {prefix}/{deviceID}
func (p *Publisher) PublishAlert(alert notify.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to serialize alert: %v", err)
	}

	topic := fmt.Sprintf("%s/%s", p.topicPrefix, alert.DeviceID)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}

	logger.Debug("mirrored alert for device %s to topic %s", alert.DeviceID, topic)
	return nil
}

// Disconnect disconnects from the MQTT broker
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
}
