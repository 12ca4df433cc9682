package rabbitmq

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/broker"

	// ampq broker
	"github.com/streadway/amqp"
)

// Broker implements the AMQP transport. It declares the same exchanges
// and default queue as celery so existing workers consume the messages
// without extra configuration.
type Broker struct {
	sync.Mutex
	amqpURL string

	connection *amqp.Connection
	channel    *amqp.Channel
}

func init() {
	// register rabbitmq
	broker.Register("amqp", &Broker{})
	broker.Register("amqps", &Broker{})
}

func (b *Broker) String() string {
	return fmt.Sprintf("AMQP Broker [%s]", b.amqpURL)
}

// Connect to rabbitmq and declare the producer topology.
func (b *Broker) Connect(uri string) error {
	b.amqpURL = uri
	log.Debugf("Dialing [%s]", uri)
	// dial the server
	conn, err := amqp.Dial(b.amqpURL)
	if err != nil {
		return err
	}

	// create the channel
	b.connection = conn
	b.channel, err = b.connection.Channel()
	if err != nil {
		return err
	}

	log.Debug("Connected to rabbitmq")
	// create exchanges
	// note that the exchanges must be the same as celery to avoid fatal errors
	if err = b.newExchange("celery", "direct", true, false); err != nil {
		return err
	}
	if err = b.newExchange("celeryev", "topic", true, false); err != nil {
		return err
	}

	log.Debug("Created exchanges")

	// create and bind the default task queue so messages published
	// before any worker shows up are not dropped
	if err = b.newQueue(defaultQueue, true, false, nil); err != nil {
		return err
	}
	if err = b.channel.QueueBind(
		defaultQueue, // queue name
		defaultQueue, // routing key
		"celery",     // exchange name
		false,        // noWait
		nil,          // arguments
	); err != nil {
		return err
	}
	log.Debug("Queue is bound to exchange")

	return nil
}

// Close the broker and cleans up resources
func (b *Broker) Close() error {
	log.Debug("Closing broker: ", b)
	return b.connection.Close()
}

// Publish sends a task message to the celery exchange.
func (b *Broker) Publish(routingKey string, message *broker.Message) error {
	b.Lock()
	defer b.Unlock()

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.Timestamp,
		ContentType:  message.ContentType,
		Body:         message.Body,
	}
	log.Debug("Publishing task to queue: ", routingKey)
	return b.channel.Publish("celery", routingKey, false, false, msg)
}

// PublishEvent sends a monitoring event to the celeryev exchange.
func (b *Broker) PublishEvent(routingKey string, message *broker.Message) error {
	b.Lock()
	defer b.Unlock()

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.Timestamp,
		ContentType:  message.ContentType,
		Body:         message.Body,
	}
	return b.channel.Publish("celeryev", routingKey, false, false, msg)
}

func (b *Broker) newExchange(name string, exchangeType string, durable bool, autoDelete bool) error {
	return b.channel.ExchangeDeclare(
		name,         // exchange name
		exchangeType, // direct or topic
		durable,      // durable
		autoDelete,   // autoDelete
		false,        // internal
		false,        // noWait
		nil,
	)
}

func (b *Broker) newQueue(name string, durable bool, autoDelete bool, arguments amqp.Table) error {
	_, err := b.channel.QueueDeclare(
		name,       // queue name
		durable,    // durable
		autoDelete, // autoDelete
		false,      // exclusive
		false,      // noWait
		arguments,
	)
	return err
}

const defaultQueue = "celery"
