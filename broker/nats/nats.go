package nats

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/broker"

	// nats broker
	"github.com/nats-io/nats.go"
)

const (
	// TaskEventChannel for task event pubsub
	TaskEventChannel string = "gocelerytaskevent"
)

// Broker implements a nats transport. Task messages are published on a
// subject named after the routing key.
type Broker struct {
	sync.Mutex
	natsURL string

	connection *nats.Conn
}

func init() {
	// register nats
	broker.Register("nats", &Broker{})
}

func (b *Broker) String() string {
	return fmt.Sprintf("Nats Broker [%s]", b.natsURL)
}

// Connect to nats
func (b *Broker) Connect(uri string) error {
	b.natsURL = uri
	log.Debugf("Dialing [%s]", uri)

	// dial the server
	conn, err := nats.Connect(b.natsURL)
	if err != nil {
		return err
	}
	b.connection = conn
	log.Debug("Connected to nats")
	return nil
}

// Publish sends a task message to the queue subject.
func (b *Broker) Publish(routingKey string, message *broker.Message) error {
	if err := b.connection.Publish(routingKey, message.Body); err != nil {
		return err
	}
	return b.connection.Flush()
}

// PublishEvent sends the event to the shared event subject.
func (b *Broker) PublishEvent(routingKey string, message *broker.Message) error {
	return b.connection.Publish(TaskEventChannel, message.Body)
}

// Close the broker and cleans up resources
func (b *Broker) Close() error {
	log.Debug("Closing broker: ", b)
	b.connection.Close()
	return nil
}
