package redis

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/broker"

	// redis broker
	"github.com/gomodule/redigo/redis"
)

const (
	// TaskEventChannel for task event pubsub
	TaskEventChannel string = "gocelerytaskevent"
)

// Broker implements the redis transport. Task messages are pushed onto
// a list named after the routing key, the layout celery's own redis
// transport consumes.
type Broker struct {
	sync.Mutex
	redisURL string
	db       string

	pool *redis.Pool
}

func init() {
	// register redis
	broker.Register("redis", &Broker{})
}

func (b *Broker) String() string {
	return fmt.Sprintf("Redis Broker [%s]", b.redisURL)
}

// Connect to redis
func (b *Broker) Connect(uri string) error {
	s := strings.SplitN(uri, "://", 2)

	if len(s) < 2 || s[1] == "" {
		return errors.New("Invalid redis URL")
	}
	hostAndDB := s[1]
	if i := strings.Index(hostAndDB, "/"); i >= 0 {
		b.db = hostAndDB[i+1:]
		hostAndDB = hostAndDB[:i]
	}
	b.redisURL = hostAndDB
	log.Debugf("Dialing [%s]", b.redisURL)

	// validate the url first
	conn, err := b.dial()
	if err != nil {
		return err
	}
	conn.Close()

	b.pool = &redis.Pool{
		MaxIdle: 3,
		Dial:    b.dial,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
	return nil
}

func (b *Broker) dial() (redis.Conn, error) {
	conn, err := redis.Dial("tcp", b.redisURL)
	if err != nil {
		return nil, err
	}
	if b.db != "" {
		if _, err = conn.Do("SELECT", b.db); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Publish pushes the task message onto the queue list.
func (b *Broker) Publish(routingKey string, message *broker.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	_, err := conn.Do("LPUSH", routingKey, message.Body)
	return err
}

// PublishEvent sends the event over pubsub.
func (b *Broker) PublishEvent(routingKey string, message *broker.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PUBLISH", TaskEventChannel, message.Body)
	return err
}

// Close the broker and cleans up resources
func (b *Broker) Close() error {
	log.Debug("Closing broker: ", b)
	if b.pool != nil {
		return b.pool.Close()
	}
	return nil
}
