// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Publisher is the interface between the tracking core and the
// out-of-scope external dashboard (spec section 1's carve-out: "only
// the interfaces between those and the core... matter"). It publishes
// FusedReadings, incidents, and health snapshots to MQTT topics, the
// same publish-JSON-over-paho idiom the original GPS producer used for
// its own telemetry.
type Publisher struct {
	client mqtt.Client
	log    *logrus.Entry
	topics Topics
}

// Topics names the MQTT topics telemetry is published to.
type Topics struct {
	Fused    string
	Incident string
	Health   string
}

// NewPublisher connects to broker with the given clientID and returns
// a ready Publisher. The caller owns disconnecting it via Close.
func NewPublisher(broker, clientID string, topics Topics, log *logrus.Entry) (*Publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", token.Error())
	}
	return &Publisher{client: client, log: log, topics: topics}, nil
}

// PublishFused publishes v (typically a types.FusedReading) to the
// fused-state topic.
func (p *Publisher) PublishFused(v interface{}) { p.publish(p.topics.Fused, v) }

// PublishIncident publishes v (typically a types.IncidentRecord) to
// the incident topic.
func (p *Publisher) PublishIncident(v interface{}) { p.publish(p.topics.Incident, v) }

// PublishHealth publishes v (a health snapshot) to the health topic.
func (p *Publisher) PublishHealth(v interface{}) { p.publish(p.topics.Health, v) }

func (p *Publisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.WithError(err).WithField("topic", topic).Warn("telemetry: marshal failed")
		return
	}
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		p.log.WithError(token.Error()).WithField("topic", topic).Warn("telemetry: publish failed")
	}
}

// Close disconnects from the broker, waiting up to 250ms for pending
// publishes to flush.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
