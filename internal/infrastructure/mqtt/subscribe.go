package mqtt

import (
	"fmt"
)

// Subscribe routes messages matching topic to handler. Wildcards are
// allowed; the command bridge listens on {prefix}/command/+.
//
// The subscription is remembered and replayed after every reconnect, since
// sessions are clean. A subscription the broker refuses is forgotten again.
// paho runs handler on its own goroutine; a panic in it is recovered and
// logged.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.remember(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic given exactly as it was subscribed.
// It is forgotten locally first, so it is not replayed even if the broker
// never answers. Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.forget(topic)

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

func (c *Client) remember(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
