package redis

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/backend"

	// redis backend
	"github.com/gomodule/redigo/redis"
)

const (
	// resultKeyPrefix matches celery's redis result backend layout.
	resultKeyPrefix = "celery-task-meta-"
	// resultExpires is celery's default result_expires of one day, in
	// seconds.
	resultExpires = 86400
)

// Backend implements the redis result backend. Records live under
// celery-task-meta-<id> keys with a one day expiry, the same layout
// celery workers write to.
type Backend struct {
	sync.Mutex
	redisURL string
	db       string

	pool *redis.Pool
}

func init() {
	// register redis
	backend.Register("redis", &Backend{})
}

func (b *Backend) String() string {
	return fmt.Sprintf("Redis Backend [%s]", b.redisURL)
}

// Connect to redis
func (b *Backend) Connect(uri string) error {
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

func (b *Backend) dial() (redis.Conn, error) {
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

// GetResult reads the record for the task id. A missing key is the
// pending state and returns nil, nil.
func (b *Backend) GetResult(taskID string) (*backend.Message, error) {
	conn := b.pool.Get()
	defer conn.Close()

	body, err := redis.Bytes(conn.Do("GET", resultKeyPrefix+taskID))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &backend.Message{
		Timestamp:   time.Now(),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// SetResult stores the record for the task id with celery's default
// expiry.
func (b *Backend) SetResult(taskID string, message *backend.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	_, err := conn.Do("SETEX", resultKeyPrefix+taskID, resultExpires, message.Body)
	return err
}

// Close the backend and cleans up resources
func (b *Backend) Close() error {
	log.Debug("Closing backend: ", b)
	if b.pool != nil {
		return b.pool.Close()
	}
	return nil
}
