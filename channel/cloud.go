/* SPDX-License-Identifier: MIT */

package channel

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// cloudQoS is MQTT's exactly-once delivery level.
const cloudQoS = 2

var mqttSentinel = []byte("mqtt")

// Cloud bridges a node to the remote cloud message bus. It always reports
// IsInitializer() == true: a responder role is structurally impossible on
// this medium, since the broker never originates a handshake.
type Cloud struct {
	client     mqtt.Client
	shortID    string
	inbound    chan []byte
	subscribed bool
}

// NewCloud connects to brokerURL and subscribes to "<shortID>/sub"; Send
// publishes to "<shortID>/pub". shortID is the first six characters of the
// node's base58 public key.
func NewCloud(brokerURL, shortID string) (*Cloud, error) {
	c := &Cloud{
		shortID: shortID,
		inbound: make(chan []byte, 64),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("liot-" + shortID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	subTopic := fmt.Sprintf("%s/sub", shortID)
	token := c.client.Subscribe(subTopic, cloudQoS, func(_ mqtt.Client, msg mqtt.Message) {
		payload := make([]byte, len(msg.Payload()))
		copy(payload, msg.Payload())
		select {
		case c.inbound <- payload:
		default:
			// Oldest-drop backpressure, matching the broadcast demux's
			// bounded-queue policy rather than blocking the paho
			// delivery goroutine.
			<-c.inbound
			c.inbound <- payload
		}
	})
	if token.Wait() && token.Error() != nil {
		c.client.Disconnect(250)
		return nil, token.Error()
	}
	c.subscribed = true
	return c, nil
}

func (c *Cloud) IsInitializer() bool { return true }

func (c *Cloud) RemoteID() []byte { return mqttSentinel }

func (c *Cloud) Send(frame []byte) error {
	pubTopic := fmt.Sprintf("%s/pub", c.shortID)
	token := c.client.Publish(pubTopic, cloudQoS, false, frame)
	token.Wait()
	return token.Error()
}

func (c *Cloud) Recv() ([]byte, error) {
	frame, ok := <-c.inbound
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}

// Close disconnects from the broker and unsubscribes.
func (c *Cloud) Close() {
	if c.subscribed {
		token := c.client.Unsubscribe(fmt.Sprintf("%s/sub", c.shortID))
		token.Wait()
	}
	c.client.Disconnect(250)
	close(c.inbound)
}
