package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	prefix string
}

// NewRealPublisher connects to broker. The retained "<prefix>/online" topic
// reads "true" while connected and "false" once the broker drops the client.
func NewRealPublisher(broker, clientID, prefix string) (*RealPublisher, error) {
	online := Topic(prefix, SuffixOnline)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(online, "false", 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			c.Publish(online, 1, true, "true")
		})

	client := paho.NewClient(opts)
	if err := connect(client, connectTimeout); err != nil {
		return nil, err
	}
	return &RealPublisher{client: client, prefix: prefix}, nil
}

// connect waits up to timeout for the first connection. On failure the client
// is disconnected so its background retries stop.
func connect(client paho.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// PublishStatus sends a reading with QoS 0, retained so new subscribers see the latest value.
func (p *RealPublisher) PublishStatus(msg StatusMessage) error {
	payload, err := FormatStatusPayload(msg)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}
	return p.publish(Topic(p.prefix, SuffixStatus), 0, true, payload)
}

// PublishNotification sends a notification with QoS 1.
func (p *RealPublisher) PublishNotification(msg NotificationMessage) error {
	payload, err := FormatNotificationPayload(msg)
	if err != nil {
		return fmt.Errorf("format notification payload: %w", err)
	}
	return p.publish(Topic(p.prefix, SuffixNotifications), 1, false, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close marks the dashboard offline and disconnects.
func (p *RealPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Publish(Topic(p.prefix, SuffixOnline), 1, true, "false").WaitTimeout(time.Second)
	}
	p.client.Disconnect(1000)
	return nil
}
