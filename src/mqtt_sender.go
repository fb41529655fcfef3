package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/sankey"
)

// TopicState carries every published signal as one JSON document
const TopicState = "boilersim/state"

// StatePublishInterval is how often the state document is published
const StatePublishInterval = time.Second

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type haEntityConfig struct {
	Name             string         `json:"name"`
	ObjectID         string         `json:"object_id"`
	DeviceClass      string         `json:"device_class,omitempty"`
	StateTopic       string         `json:"state_topic"`
	UnitOfMeasure    string         `json:"unit_of_measurement,omitempty"`
	ValueTemplate    string         `json:"value_template"`
	UniqueId         string         `json:"unique_id"`
	ExpireAfter      uint           `json:"expire_after,omitempty"`
	StateClass       string         `json:"state_class,omitempty"`
	DisplayPrecision int            `json:"suggested_display_precision,omitempty"`
	Icon             string         `json:"icon,omitempty"`
	Device           haDeviceConfig `json:"device"`
}

// haSensor is one published signal. Its state key and object id both derive from Name.
type haSensor struct {
	Name        string
	DeviceClass string
	Unit        string
	Precision   int
	Icon        string
	Text        bool // no state_class for non-numeric values
}

func (h haSensor) key() string {
	return strcase.ToSnake(h.Name)
}

func plantSensors() []haSensor {
	sensors := []haSensor{
		{Name: "SH5 temperature", DeviceClass: "temperature", Unit: "°C", Precision: 1},
		{Name: "SH5 target", DeviceClass: "temperature", Unit: "°C", Precision: 1},
		{Name: "O2", Unit: "%", Precision: 2, Icon: "mdi:gas-cylinder"},
		{Name: "Steam flow", Unit: "t/h", Precision: 2, Icon: "mdi:pipe"},
		{Name: "Barycenter", Precision: 2, Icon: "mdi:fire"},
		{Name: "Fouling", Unit: "%", Precision: 1, Icon: "mdi:water-alert"},
		{Name: "Waste deposit", Unit: "%", Precision: 1, Icon: "mdi:delete-variant"},
		{Name: "Estimated PCI", Unit: "kJ/kg", Precision: 0, Icon: "mdi:flash"},
		{Name: "Explosion risk score", Precision: 0, Icon: "mdi:alert"},
		{Name: "Explosion risk level", Icon: "mdi:alert-octagon", Text: true},
		{Name: sankey.SignalPrimaryAir, Unit: "Nm³/h", Precision: 0, Icon: "mdi:weather-windy"},
		{Name: sankey.SignalSecondaryAir, Unit: "Nm³/h", Precision: 0, Icon: "mdi:weather-windy"},
	}
	for zone := 1; zone <= 3; zone++ {
		sensors = append(sensors, haSensor{Name: sankey.ZoneSignal(zone), Unit: "Nm³/h", Icon: "mdi:fan"})
	}
	for roller := 1; roller <= 6; roller++ {
		sensors = append(sensors, haSensor{Name: sankey.RollerSignal(roller), Unit: "Nm³/h", Icon: "mdi:fan"})
	}
	return sensors
}

func discoveryMessage(h haSensor) (MQTTMessage, error) {
	objectID := sankey.ObjectID(h.Name)
	config := haEntityConfig{
		Name:             h.Name,
		ObjectID:         objectID,
		DeviceClass:      h.DeviceClass,
		StateTopic:       TopicState,
		UnitOfMeasure:    h.Unit,
		ValueTemplate:    "{{ value_json." + h.key() + " }}",
		UniqueId:         objectID,
		ExpireAfter:      60 * 5,
		DisplayPrecision: h.Precision,
		Icon:             h.Icon,
		Device: haDeviceConfig{
			Identifiers:  []string{sankey.DevicePrefix},
			Name:         "Boiler simulator",
			Manufacturer: "Custom",
			Model:        "Grate incinerator",
		},
	}
	if !h.Text {
		config.StateClass = "measurement"
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return MQTTMessage{}, err
	}
	return MQTTMessage{
		Topic:   "homeassistant/sensor/" + objectID + "/config",
		Payload: payload,
		QoS:     2,
		Retain:  true,
	}, nil
}

// CreateEntities announces every plant sensor via MQTT discovery
func (s *MQTTSender) CreateEntities() error {
	for _, h := range plantSensors() {
		msg, err := discoveryMessage(h)
		if err != nil {
			return fmt.Errorf("%s: %w", h.Name, err)
		}
		s.Send(msg)
	}
	return nil
}

// statePayload builds the state document, keyed the way the discovery templates expect
func statePayload(f Frame) map[string]any {
	values := map[string]any{
		"SH5 temperature":         f.RealSH5,
		"SH5 target":              f.Result.SH5Target,
		"O2":                      f.Result.SimulatedO2,
		"Steam flow":              f.Result.SteamFlow,
		"Barycenter":              f.DisplayBarycenter,
		"Fouling":                 f.Fouling,
		"Waste deposit":           f.WasteDeposit,
		"Estimated PCI":           f.DisplayPCI,
		"Explosion risk score":    f.Risk.Score,
		"Explosion risk level":    string(f.Risk.RiskLevel),
		sankey.SignalPrimaryAir:   f.Controls.PrimaryAir,
		sankey.SignalSecondaryAir: f.Result.ASFlow,
	}
	for i, flow := range f.ZoneFlows {
		values[sankey.ZoneSignal(i+1)] = flow
	}
	for i, pct := range f.Rollers {
		values[sankey.RollerSignal(i+1)] = pct / 100 * f.Controls.PrimaryAir
	}

	payload := make(map[string]any, len(values))
	for name, v := range values {
		payload[haSensor{Name: name}.key()] = v
	}
	return payload
}

// PublishState publishes the state document for a frame
func (s *MQTTSender) PublishState(f Frame) error {
	payload, err := json.Marshal(statePayload(f))
	if err != nil {
		return err
	}
	s.Send(MQTTMessage{Topic: TopicState, Payload: payload, QoS: 0, Retain: false})
	return nil
}

// mqttStateWorker keeps the latest frame and publishes it on a fixed period
func mqttStateWorker(
	ctx context.Context,
	inputChan <-chan Frame,
	sender *MQTTSender,
	interval time.Duration,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latest *Frame
	for {
		select {
		case frame := <-inputChan:
			latest = &frame
		case <-ticker.C:
			if latest == nil {
				continue
			}
			if err := sender.PublishState(*latest); err != nil {
				logger.Error("Failed to publish state", zap.Error(err))
			}
			latest = nil
		case <-ctx.Done():
			return
		}
	}
}

// mqttSenderWorker publishes outgoing messages, queuing them until a client is connected
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
	logger *zap.Logger,
) {
	logger.Info("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	publish := func(msg MQTTMessage) {
		token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
		token.Wait()
		if token.Error() != nil {
			logger.Warn("Failed to publish", zap.String("topic", msg.Topic), zap.Error(token.Error()))
		}
	}

	for {
		select {
		case newClient := <-clientChan:
			client = newClient

			// Process any queued messages now that we have a client
			if client != nil && client.IsConnected() {
				for _, msg := range messageQueue {
					publish(msg)
				}
				if len(messageQueue) > 0 {
					logger.Info("Published queued messages", zap.Int("count", len(messageQueue)))
				}
				messageQueue = nil
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(msg)
				continue
			}
			// Only retained messages are worth replaying; state is republished every second
			if msg.Retain {
				messageQueue = append(messageQueue, msg)
				logger.Debug("Queued message", zap.String("topic", msg.Topic), zap.Int("queued", len(messageQueue)))
			}

		case <-ctx.Done():
			logger.Info("MQTT sender worker stopped")
			return
		}
	}
}
