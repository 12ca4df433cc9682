package amqp

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/backend"

	// amqp backend
	"github.com/streadway/amqp"
)

// Backend implements the amqp result backend: one auto-deleted queue
// per task on the celeryresults exchange, routed by the task id with
// dashes removed, the layout celery's amqp backend publishes to.
//
// The transport delivers each record once, so fetched records are
// cached to keep GetResult idempotent.
type Backend struct {
	sync.Mutex
	amqpURL string

	connection *amqp.Connection
	channel    *amqp.Channel

	fetched map[string]*backend.Message
}

func init() {
	// register amqp
	backend.Register("amqp", &Backend{})
	backend.Register("amqps", &Backend{})
}

func (b *Backend) String() string {
	return fmt.Sprintf("AMQP Backend [%s]", b.amqpURL)
}

// Connect to rabbitmq and declare the results exchange.
func (b *Backend) Connect(uri string) error {
	b.amqpURL = uri
	log.Debugf("Dialing [%s]", uri)
	conn, err := amqp.Dial(b.amqpURL)
	if err != nil {
		return err
	}

	b.connection = conn
	b.channel, err = b.connection.Channel()
	if err != nil {
		return err
	}
	b.fetched = make(map[string]*backend.Message)

	// exchange name must match celery to avoid fatal errors
	if err = b.channel.ExchangeDeclare(
		"celeryresults", // exchange name
		"direct",        // type
		true,            // durable
		false,           // autoDelete
		false,           // internal
		false,           // noWait
		nil,
	); err != nil {
		return err
	}
	log.Debug("Connected to rabbitmq results exchange")
	return nil
}

// routingKey is the task id with dashes removed, per the celery amqp
// backend convention.
func routingKey(taskID string) string {
	return strings.Replace(taskID, "-", "", -1)
}

func (b *Backend) resultQueue(key string) error {
	_, err := b.channel.QueueDeclare(
		key,   // queue name
		true,  // durable
		true,  // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}
	return b.channel.QueueBind(
		key,             // queue name
		key,             // routing key
		"celeryresults", // exchange name
		false,           // noWait
		nil,             // arguments
	)
}

// GetResult fetches the record for the task id. Absence of a record is
// the pending state and returns nil, nil.
func (b *Backend) GetResult(taskID string) (*backend.Message, error) {
	b.Lock()
	defer b.Unlock()

	if message, ok := b.fetched[taskID]; ok {
		return message, nil
	}

	key := routingKey(taskID)
	if err := b.resultQueue(key); err != nil {
		return nil, err
	}
	delivery, ok, err := b.channel.Get(key, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	message := &backend.Message{
		Timestamp:   delivery.Timestamp,
		ContentType: delivery.ContentType,
		Body:        delivery.Body,
	}
	b.fetched[taskID] = message
	return message, nil
}

// SetResult publishes the record on the results exchange.
func (b *Backend) SetResult(taskID string, message *backend.Message) error {
	b.Lock()
	defer b.Unlock()

	key := routingKey(taskID)
	if err := b.resultQueue(key); err != nil {
		return err
	}
	log.Debug("Publishing task result: ", key)
	return b.channel.Publish("celeryresults", key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  message.ContentType,
		Body:         message.Body,
	})
}

// Close the backend and cleans up resources
func (b *Backend) Close() error {
	log.Debug("Closing backend: ", b)
	return b.connection.Close()
}
