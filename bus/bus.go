// package bus adapts the MQTT connection shared by the gatekeeper
// services: sub-topic rendering under configurable prefixes and a
// subscription registry that is replayed after every reconnect, so a
// broker restart costs nothing but the messages lost in between.
package bus

import (
	"errors"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// qos 2 is requested for everything; the services are idempotent, so
// degraded delivery is acceptable.
const qos = 2

// A Handler receives the decoded payload of one message.
type Handler func(payload string)

// Conn is one client connection to the broker. All subscriptions made
// through it are recorded and restored on reconnect.
type Conn struct {
	client mqtt.Client

	mu     sync.Mutex
	topics map[string]Handler
}

// ErrEmptyTopic is returned for a subscribe or publish with an empty
// sub-topic.
var ErrEmptyTopic = errors.New("bus: empty sub-topic")

// Dial connects to the broker and keeps the connection alive.
func Dial(host string, port int) (*Conn, error) {
	c := &Conn{topics: make(map[string]Handler)}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", host, port))
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("bus: connected to %s:%d", host, port)
		c.restore(client)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("bus: connection lost: %v", err)
	})
	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("bus: connect %s:%d: %w", host, port, token.Error())
	}
	return c, nil
}

// Close disconnects from the broker.
func (c *Conn) Close() {
	c.client.Disconnect(250)
}

// restore re-subscribes every recorded topic on a fresh connection.
func (c *Conn) restore(client mqtt.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, h := range c.topics {
		if token := client.Subscribe(topic, qos, route(h)); token.Wait() && token.Error() != nil {
			log.Printf("bus: restore %s: %v", topic, token.Error())
		}
	}
}

func route(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		h(string(m.Payload()))
	}
}

func (c *Conn) subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.topics[topic] = h
	c.mu.Unlock()
	if token := c.client.Subscribe(topic, qos, route(h)); token.Wait() && token.Error() != nil {
		return fmt.Errorf("bus: subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (c *Conn) publish(topic, payload string) error {
	if token := c.client.Publish(topic, qos, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, token.Error())
	}
	return nil
}

// A Scope renders sub-topics under a prefix. An empty prefix passes
// sub-topics through unchanged.
type Scope struct {
	conn *Conn
	base string
}

// Scope returns a view of the connection under the given topic
// prefix.
func (c *Conn) Scope(base string) Scope {
	return Scope{conn: c, base: base}
}

func (s Scope) topic(sub string) (string, error) {
	if sub == "" {
		return "", ErrEmptyTopic
	}
	if s.base == "" {
		return sub, nil
	}
	return s.base + "/" + sub, nil
}

// Subscribe registers h for the given sub-topic. The registration
// survives reconnects.
func (s Scope) Subscribe(sub string, h Handler) error {
	topic, err := s.topic(sub)
	if err != nil {
		return err
	}
	return s.conn.subscribe(topic, h)
}

// Publish sends payload to the given sub-topic.
func (s Scope) Publish(sub, payload string) error {
	topic, err := s.topic(sub)
	if err != nil {
		return err
	}
	return s.conn.publish(topic, payload)
}
