package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/sim"
)

// TopicCommandPrefix is where setpoints arrive, one topic per command: boilersim/set/steam
const TopicCommandPrefix = "boilersim/set/"

// CommandMessage is a setpoint received over MQTT
type CommandMessage struct {
	Name  string
	Value string
}

// parseCommandTopic extracts the command name from a command topic
func parseCommandTopic(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, TopicCommandPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// mqttWorker manages the MQTT connection and forwards command messages to a channel
func mqttWorker(
	ctx context.Context,
	broker string,
	username, password, clientID string,
	commandChan chan<- CommandMessage,
	clientChan chan<- mqtt.Client,
	logger *zap.Logger,
) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:1883", broker))
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", broker))

		// Send the new client to the sender worker
		select {
		case clientChan <- client:
		case <-ctx.Done():
			return
		}

		token := client.Subscribe(TopicCommandPrefix+"#", 1, func(client mqtt.Client, msg mqtt.Message) {
			name, ok := parseCommandTopic(msg.Topic())
			if !ok {
				logger.Debug("Ignoring message", zap.String("topic", msg.Topic()))
				return
			}
			select {
			case commandChan <- CommandMessage{Name: name, Value: string(msg.Payload())}:
			case <-ctx.Done():
			}
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("Failed to subscribe to command topics", zap.Error(token.Error()))
		} else {
			logger.Info("Subscribed to command topics", zap.String("topic", TopicCommandPrefix+"#"))
		}
	})

	client := mqtt.NewClient(opts)

	logger.Info("Connecting to MQTT broker", zap.String("broker", broker))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("Failed to connect to MQTT broker", zap.Error(token.Error()))
		return
	}

	// Keep worker alive until context is done
	<-ctx.Done()

	if client.IsConnected() {
		client.Disconnect(250)
		logger.Info("Disconnected from MQTT broker")
	}
}

// commandApplier is the part of the simulation the command worker drives
type commandApplier interface {
	ApplyCommand(name, value string) (string, error)
}

var _ commandApplier = (*sim.Simulation)(nil)

func applyCommand(s commandApplier, m *metrics.Metrics, logger *zap.Logger, cmd CommandMessage) {
	result, err := s.ApplyCommand(cmd.Name, cmd.Value)
	m.Command(cmd.Name, err)
	if err != nil {
		logger.Warn("Rejected command", zap.String("command", cmd.Name), zap.String("value", cmd.Value), zap.Error(err))
		return
	}
	logger.Info("Applied command", zap.String("command", cmd.Name), zap.String("result", result))
}

// commandWorker applies setpoints received over MQTT
func commandWorker(
	ctx context.Context,
	commandChan <-chan CommandMessage,
	s commandApplier,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	for {
		select {
		case cmd := <-commandChan:
			applyCommand(s, m, logger, cmd)
		case <-ctx.Done():
			return
		}
	}
}
