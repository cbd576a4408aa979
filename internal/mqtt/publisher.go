package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"homehub/internal/config"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 4 * time.Second
)

// StatePublisher mirrors device state changes onto an MQTT broker so other
// home automation systems can follow along.
type StatePublisher struct {
	conn        *autopaho.ConnectionManager
	topicPrefix string
}

// NewStatePublisher connects to the configured broker. Returns nil without
// error when no broker is configured; state mirroring is optional.
func NewStatePublisher(ctx context.Context, cfg *config.Config) (*StatePublisher, error) {
	if cfg.MQTT.BrokerURL == "" {
		return nil, nil
	}

	addr, err := url.Parse(cfg.MQTT.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %w", err)
	}

	clientConfig := autopaho.ClientConfig{
		BrokerUrls:            []*url.URL{addr},
		KeepAlive:             20,
		SessionExpiryInterval: 60,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			log.Printf("[MQTT] Connected to broker %s", cfg.MQTT.BrokerURL)
		},
		OnConnectError: func(err error) {
			log.Printf("[MQTT] Connection error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.MQTT.ClientID,
			OnServerDisconnect: func(*paho.Disconnect) {
				log.Printf("[MQTT] Disconnected from broker")
			},
		},
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := autopaho.NewConnection(connectCtx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT connection: %w", err)
	}
	if err := conn.AwaitConnection(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &StatePublisher{
		conn:        conn,
		topicPrefix: cfg.MQTT.TopicPrefix,
	}, nil
}

// PublishState sends the device's state as retained JSON on
// <prefix>/<device_id>/state.
func (p *StatePublisher) PublishState(deviceID string, state map[string]interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	_, err = p.conn.Publish(ctx, &paho.Publish{
		Topic:   fmt.Sprintf("%s/%s/state", p.topicPrefix, deviceID),
		QoS:     1,
		Retain:  true,
		Payload: payload,
	})
	return err
}

func (p *StatePublisher) Close(ctx context.Context) error {
	return p.conn.Disconnect(ctx)
}
