package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	DEFAULT_DISCOVERY_PREFIX = "homeassistant"
)

const (
	COMMAND_SWITCH = "switch"
	COMMAND_NUMBER = "number"
)

var errNotACommand = errors.New("not a command topic")

// Topics lays out the simulator topics under a base topic:
//
//	<base>/bridge/state
//	<base>/sensor/<id>/state, <base>/binary_sensor/<id>/state
//	<base>/switch/<id>/state, <base>/switch/<id>/command
//	<base>/number/<id>/state, <base>/number/<id>/set
type Topics struct {
	base    string
	command *regexp.Regexp
}

func NewTopics(baseTopic string) Topics {
	return Topics{
		base:    baseTopic,
		command: regexp.MustCompile(fmt.Sprintf("^%s/(switch/([a-zA-Z0-9_-]+)/command|number/([a-zA-Z0-9_-]+)/set)$", regexp.QuoteMeta(baseTopic))),
	}
}

func (t Topics) BridgeStateTopic() string {
	return t.base + "/bridge/state"
}

func (t Topics) SensorStateTopic(sensorId string) string {
	return t.entity("sensor", sensorId, "state")
}

func (t Topics) BinarySensorStateTopic(sensorId string) string {
	return t.entity("binary_sensor", sensorId, "state")
}

func (t Topics) SwitchStateTopic(switchId string) string {
	return t.entity("switch", switchId, "state")
}

func (t Topics) SwitchCommandTopic(switchId string) string {
	return t.entity("switch", switchId, "command")
}

func (t Topics) InputNumberStateTopic(id string) string {
	return t.entity("number", id, "state")
}

func (t Topics) InputNumberCommandTopic(id string) string {
	return t.entity("number", id, "set")
}

func (t Topics) entity(component, id, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.base, component, id, leaf)
}

// ParsedMQTTCommand is a command received on a switch or number topic.
type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Payload  string
}

// ParseCommand matches topic against the switch and number command topics.
// Number payloads must be valid floats.
func (t Topics) ParseCommand(topic string, payload string) (*ParsedMQTTCommand, error) {
	m := t.command.FindStringSubmatch(topic)
	if m == nil {
		return nil, errNotACommand
	}
	if m[2] != "" {
		return &ParsedMQTTCommand{DeviceId: m[2], Command: COMMAND_SWITCH, Payload: payload}, nil
	}
	if _, err := strconv.ParseFloat(payload, 64); err != nil {
		return nil, fmt.Errorf("number %s: %w", m[3], err)
	}
	return &ParsedMQTTCommand{DeviceId: m[3], Command: COMMAND_NUMBER, Payload: payload}, nil
}

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("microgrid_%d", rand.IntN(100000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	// the bridge goes offline in Home Assistant when the simulator dies
	opts.SetWill(NewTopics(cfg.MQTT.BaseTopic).BridgeStateTopic(), MQTT_PAYLOAD_OFFLINE, 0, true)

	return opts
}

// MQTTClient wraps paho with continuation-style calls, so actors get the
// outcome of every token back as a message.
type MQTTClient struct {
	Topics
	client          mqtt.Client
	discoveryPrefix string
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		Topics:          NewTopics(cfg.MQTT.BaseTopic),
		client:          mqtt.NewClient(opts),
		discoveryPrefix: cfg.MQTT.HADiscoveryTopic,
	}
}

func (c *MQTTClient) DiscoveryPrefix() string {
	if c.discoveryPrefix == "" {
		return DEFAULT_DISCOVERY_PREFIX
	}
	return c.discoveryPrefix
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.ParseCommand(msg.Topic(), string(msg.Payload()))
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	await(c.client.Connect(), "connect", timeout, continuation)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	await(c.client.Publish(topic, qos, retain, payload), "publish", timeout, continuation)
}

// SubscribeToCommandTopic subscribes to everything under the base topic;
// ParseMQTTCommand filters out the non-command messages.
func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	await(c.client.Subscribe(c.base+"/#", 1, handler), "subscribe", timeout, continuation)
}

func await(token mqtt.Token, op string, timeout time.Duration, continuation func(error)) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out", op))
			return
		}
		continuation(token.Error())
	}()
}
