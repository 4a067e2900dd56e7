package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/1ureka/groundlink/internal/util"
)

// publisher is the subset of the paho client used by MQTT.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each point as JSON to <prefix>/<subsystem>.
type MQTT struct {
	client publisher
	prefix string
	now    func() time.Time
	close  func()
}

var _ Sink = (*MQTT)(nil)

// message is the JSON body of a published point.
type message struct {
	Subsystem string         `json:"subsystem"`
	Time      time.Time      `json:"time"`
	Fields    map[string]any `json:"fields"`
}

// NewMQTT connects to broker (e.g. tcp://localhost:1883) and publishes under prefix.
func NewMQTT(broker, prefix, clientID string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			util.LogWarning("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			util.LogInfo("MQTT connected to %s", broker)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("MQTT connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, err)
	}

	m := newMQTT(client, prefix)
	m.close = func() { client.Disconnect(250) }
	return m, nil
}

func newMQTT(client publisher, prefix string) *MQTT {
	return &MQTT{client: client, prefix: strings.TrimSuffix(prefix, "/"), now: time.Now}
}

// Record publishes asynchronously at QoS 0; failures are logged when the
// token completes.
func (m *MQTT) Record(subsystem string, fields map[string]any) {
	body, err := json.Marshal(message{Subsystem: subsystem, Time: m.now().UTC(), Fields: fields})
	if err != nil {
		util.LogWarning("telemetry encode %s: %v", subsystem, err)
		return
	}

	topic := m.prefix + "/" + topicSegment(subsystem)
	token := m.client.Publish(topic, 0, false, body)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			util.LogWarning("MQTT publish %s: %v", topic, token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.close != nil {
		m.close()
	}
}

// topicSegment turns a subsystem tag into a lower-case, slash-free topic level.
func topicSegment(subsystem string) string {
	s := strings.ToLower(strings.TrimSpace(subsystem))
	s = strings.NewReplacer(" ", "_", "/", "_", "+", "_", "#", "_").Replace(s)
	return s
}
