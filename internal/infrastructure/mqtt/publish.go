package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message at 1 MiB, the usual broker default.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Device presence and status go out retained so a dashboard that subscribes
// late still sees current state; command acks are not retained.
//
// Example:
//
//	err := client.Publish(client.Topics().DeviceCommandAck("meter-01"), ack, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload over the %d byte limit", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishRetained publishes a retained message at the configured QoS.
// The mirror uses it for device presence and status.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.QoS(), true)
}

// checkTopicQoS validates the arguments shared by Publish and Subscribe.
func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// await waits operationTimeout for token and wraps any failure in kind.
func await(token pahomqtt.Token, kind error) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: no broker response after %v", kind, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
