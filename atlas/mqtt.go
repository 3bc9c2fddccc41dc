package atlas

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PayloadHandler is called when a map payload message is received.
// Parameters: mapID, parsed payload, parse error.
type PayloadHandler func(mapID string, payload *MapPayload, err error)

// MQTTClient manages the MQTT connection and per-map payload subscriptions.
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	payloadHandler PayloadHandler
	isConnected    bool
	mu             sync.RWMutex
}

// InitMQTT initializes an MQTT client subscribed to every configured map
// topic. If neither the MQTT_BROKER env var nor the config set a broker, MQTT
// is disabled and this returns nil.
func InitMQTT(config *Config, handler PayloadHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil || len(config.Maps) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no map configuration provided")
	}

	client := &MQTTClient{
		config:         config,
		payloadHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := config.MQTT.ClientID
	if clientID == "" {
		clientID = "voxmesh"
	}
	opts.SetClientID(clientID)

	if config.MQTT.Username != "" {
		opts.SetUsername(config.MQTT.Username)
		opts.SetPassword(config.MQTT.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false) // preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)

	client.client = mqtt.NewClient(opts)

	if token := client.client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return client, nil
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	c.isConnected = connected
	c.mu.Unlock()
}

func (c *MQTTClient) onConnect(_ mqtt.Client) {
	c.setConnected(true)
	log.Println("Connected to MQTT broker")

	for _, mc := range c.config.Maps {
		if mc.Topic == "" {
			continue
		}
		mapID := mc.ID
		token := c.client.Subscribe(mc.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			payload, err := ParseMapJSON(msg.Payload())
			if err != nil {
				c.payloadHandler(mapID, nil, fmt.Errorf("topic %s: %w", msg.Topic(), err))
				return
			}
			if payload.MapID == "" {
				payload.MapID = mapID
			}
			c.payloadHandler(mapID, payload, nil)
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s for map %s: %v", mc.Topic, mapID, token.Error())
			continue
		}
		log.Printf("Subscribed to %s for map %s", mc.Topic, mapID)
	}
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.setConnected(false)
	log.Printf("MQTT connection lost: %v", err)
}

// IsConnected reports whether the client currently has a broker connection.
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// Disconnect cleanly closes the broker connection.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// Client returns the underlying paho client for publishing.
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client.
// This is used for testing with mock clients.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler PayloadHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		payloadHandler: handler,
	}
}
