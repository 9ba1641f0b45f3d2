// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/config"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttKeepAlive         = 60 * time.Second
	mqttDisconnectQuiesce = 1000 // milliseconds
	mqttMaxQoS            = 2
)

// mqttClient is the subset of the paho client the sink uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each decoded field to <prefix>/<circuit>/<field> with a
// JSON payload {"value": ..., "unit": ...}.
type MQTTSink struct {
	client mqttClient
	prefix string
	qos    byte
	retain bool
	logger zerolog.Logger
}

type mqttPayload struct {
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// NewMQTTSink wraps an already connected client
func NewMQTTSink(client mqttClient, prefix string, qos byte, retain bool, logger zerolog.Logger) (*MQTTSink, error) {
	if qos > mqttMaxQoS {
		return nil, fmt.Errorf("mqtt qos %d out of range", qos)
	}
	if prefix == "" {
		prefix = "ebus"
	}
	return &MQTTSink{client: client, prefix: prefix, qos: qos, retain: retain, logger: logger}, nil
}

// ConnectMQTT connects to the configured broker. A random client ID is used
// when none is configured.
func ConnectMQTT(cfg config.MQTTConfig, logger zerolog.Logger) (*MQTTSink, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ebustat-" + uuid.NewString()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ebus"
	}
	statusTopic := prefix + "/status"

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetWill(statusTopic, "offline", 1, true)

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("mqtt connected")
		c.Publish(statusTopic, 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt timeout after %v", ErrConnectionFailed, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt: %w", ErrConnectionFailed, err)
	}

	return NewMQTTSink(client, prefix, byte(cfg.QoS), cfg.Retain, logger)
}

// Topic returns the topic a field is published on
func (s *MQTTSink) Topic(circuit, field string) string {
	return s.prefix + "/" + topicSegment(circuit) + "/" + topicSegment(field)
}

// Publish implements Sink
func (s *MQTTSink) Publish(ctx context.Context, ev Event) error {
	for _, r := range ev.Records {
		for _, f := range r.Fields {
			if err := ctx.Err(); err != nil {
				return err
			}

			payload, err := json.Marshal(mqttPayload{Value: f.Value, Unit: f.Unit})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrPublishFailed, err)
			}

			topic := s.Topic(r.Circuit, f.Name)
			token := s.client.Publish(topic, s.qos, s.retain, payload)
			if !token.WaitTimeout(mqttPublishTimeout) {
				return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, mqttPublishTimeout)
			}
			if err := token.Error(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
			}
			s.logger.Debug().Str("topic", topic).Bytes("payload", payload).Msg("mqtt published")
		}
	}
	return nil
}

// Close disconnects from the broker
func (s *MQTTSink) Close() error {
	if s.client != nil {
		s.client.Publish(s.prefix+"/status", 1, true, "offline").WaitTimeout(mqttPublishTimeout)
		s.client.Disconnect(mqttDisconnectQuiesce)
	}
	return nil
}
