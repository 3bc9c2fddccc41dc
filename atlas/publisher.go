package atlas

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher announces index-build and assignment events over MQTT so
// downstream consumers can react to freshly built maps.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates an event publisher.
// If client is nil, publishing is disabled (for testing).
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = os.Getenv("MQTT_PUBLISH_PREFIX")
	}
	if prefix == "" {
		prefix = "voxmesh"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // retain the latest map state per topic
	}
}

// PublishMapState publishes the latest state of a rebuilt map to
// {prefix}/maps/{mapID}.
func (p *Publisher) PublishMapState(state MapState) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	topic := fmt.Sprintf("%s/maps/%s", p.publishPrefix, state.MapID)
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling map state: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published map state for %s: %d labels, fingerprint %s",
		state.MapID, len(state.Labels), state.Fingerprint[:12])
	return nil
}

// PublishMatches publishes the qualifying pairs of an assignment run to
// {prefix}/assignments. Assignment results are transient, so they are not
// retained.
func (p *Publisher) PublishMatches(matches []Match) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	topic := fmt.Sprintf("%s/assignments", p.publishPrefix)
	message := map[string]any{
		"matches":   matches,
		"timestamp": time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling matches: %w", err)
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}
