package broker

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message is the payload handed to the broker.
type Message struct {
	Timestamp   time.Time
	ContentType string
	Body        []byte
}

// Broker is the publish-only transport capability the client dispatches
// through. Reconnection and delivery retry are owned by the
// implementation, not by the client.
type Broker interface {
	Connect(string) error
	// Publish sends a task message on the given routing key.
	Publish(string, *Message) error
	// PublishEvent sends a celery monitoring event.
	PublishEvent(string, *Message) error
	Close() error
}

var brokerRegistery = make(map[string]Broker)

// Register a broker based on its scheme
func Register(scheme string, b Broker) {
	brokerRegistery[scheme] = b
}

// New creates and connects a broker based on the uri
func New(uri string) (Broker, error) {
	var scheme = strings.SplitN(uri, "://", 2)[0] // get scheme

	if broker, ok := brokerRegistery[scheme]; ok { // check if scheme is registered
		err := broker.Connect(uri)
		if err != nil {
			log.Error("Failed to connect to broker:", err)
			return nil, err
		}
		return broker, nil
	}

	return nil, fmt.Errorf("Unknown broker [%s]", scheme)
}
