package gocelery

import (
	"os"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/backend"
	"github.com/taoh/gocelery-client/broker"
	"github.com/taoh/gocelery-client/serializer"
)

// Client dispatches tasks to a broker and correlates their outcomes
// through a result backend. Delay and Publish return immediately; the
// actual publish happens on a single dispatch goroutine once the
// readiness gate is open, in the order the messages were submitted.
type Client struct {
	config *Config

	gate  *readyGate
	queue *sendQueue
	cron  *cron.Cron
	done  chan struct{}

	failures chan *DispatchError
	pending  sync.WaitGroup

	mu             sync.Mutex
	broker         broker.Broker
	backend        backend.Backend
	closed         bool
	ownsTransports bool
}

// New creates a client with the given config. The broker and backend
// are looked up by url scheme and connected in the background; messages
// submitted before the connections are usable are queued and flushed in
// order once they are.
func New(config *Config) *Client {
	c := newClient(withDefaults(config))
	c.ownsTransports = true
	go c.connect()
	return c
}

// NewWith creates a client around caller-supplied transports. The
// caller owns their connection lifecycle and signals readiness through
// MarkReady once both are usable.
func NewWith(config *Config, br broker.Broker, be backend.Backend) *Client {
	c := newClient(withDefaults(config))
	c.broker = br
	c.backend = be
	return c
}

func newClient(config *Config) *Client {
	setupLogLevel(config)
	c := &Client{
		config:   config,
		gate:     newReadyGate(),
		queue:    newSendQueue(),
		cron:     cron.New(),
		done:     make(chan struct{}),
		failures: make(chan *DispatchError, 64),
	}
	c.cron.Start()
	go c.dispatchLoop()
	return c
}

// set up log level. default is info
func setupLogLevel(config *Config) {
	log.SetOutput(os.Stderr)
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		log.Warnf("Failed to set log level: %s. Use default: info", config.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// connect establishes the configured transports and opens the gate.
func (c *Client) connect() {
	br, err := broker.New(c.config.BrokerURL)
	if err != nil {
		log.Error("Failed to connect to broker: ", err)
		c.report(&DispatchError{Reason: ErrTransport, Cause: err})
		return
	}
	be, err := backend.New(c.config.BackendURL)
	if err != nil {
		log.Error("Failed to connect to backend: ", err)
		c.report(&DispatchError{Reason: ErrBackendUnavailable, Cause: err})
		return
	}

	c.mu.Lock()
	c.broker = br
	c.backend = be
	c.mu.Unlock()

	log.Debug("Connected to broker and backend")
	c.gate.open()
}

// MarkReady opens the readiness gate. New opens it on its own once both
// transports connect; NewWith callers invoke this when theirs are
// usable. Readiness is monotonic, repeated calls have no effect.
func (c *Client) MarkReady() {
	c.gate.open()
}

// IsReady returns a channel that is closed once the client may publish.
// All callers waiting before readiness are released at the same
// instant; callers after that get an already closed channel.
func (c *Client) IsReady() <-chan struct{} {
	return c.gate.ready()
}

// Broker returns the broker capability, or nil before it has connected.
func (c *Client) Broker() broker.Broker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broker
}

// Backend returns the backend capability shared by every AsyncResult of
// this client, or nil before it has connected.
func (c *Client) Backend() backend.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// CreateTask returns a handle for the named remote procedure. The name
// is not checked against any registry; an unknown name fails on the
// worker.
func (c *Client) CreateTask(name string) (*Task, error) {
	if name == "" {
		return nil, ErrInvalidTaskName
	}
	return &Task{Name: name, client: c}, nil
}

// Delay creates the task and submits it in one call.
func (c *Client) Delay(name string, args []interface{}, kwargs map[string]interface{}) (*AsyncResult, error) {
	task, err := c.CreateTask(name)
	if err != nil {
		return nil, err
	}
	return task.Delay(args, kwargs)
}

// Publish queues the task message for dispatch and returns the result
// handle. The handle is valid immediately, before the broker has seen
// the message; dispatch failures are delivered through
// DispatchFailures, never through this return value.
func (c *Client) Publish(task *Task, args []interface{}, kwargs map[string]interface{}) (*AsyncResult, error) {
	if task == nil || task.Name == "" {
		return nil, ErrInvalidTaskName
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClientClosed
	}

	id := uuid.New().String()
	result := &AsyncResult{
		taskID:       id,
		client:       c,
		pollInterval: c.config.ResultPollInterval,
	}

	c.pending.Add(1)
	if !c.queue.push(&outbound{id: id, name: task.Name, args: args, kwargs: kwargs}) {
		c.pending.Done()
		return nil, ErrClientClosed
	}
	log.Debug("Queued task: ", task.Name, " ID: ", id)
	return result, nil
}

// DelayWithSchedule dispatches the named task repeatedly on a cron
// schedule, specified in the standard five field cron format.
func (c *Client) DelayWithSchedule(spec string, name string, args []interface{}, kwargs map[string]interface{}) (cron.EntryID, error) {
	task, err := c.CreateTask(name)
	if err != nil {
		return 0, err
	}
	return c.cron.AddFunc(spec, func() {
		log.Infof("Dispatching scheduled task %s: %s", spec, name)
		if _, err := task.Delay(args, kwargs); err != nil {
			log.Error("Failed to dispatch scheduled task: ", err)
		}
	})
}

// DispatchFailures exposes asynchronous publish failures. The channel
// is buffered; when nobody drains it, further failures are logged and
// dropped rather than blocking the dispatch loop.
func (c *Client) DispatchFailures() <-chan *DispatchError {
	return c.failures
}

// Drain blocks until every message queued so far has been handed to the
// broker or reported as failed. Zero timeout waits forever.
func (c *Client) Drain(timeout time.Duration) error {
	flushed := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(flushed)
	}()
	if timeout <= 0 {
		<-flushed
		return nil
	}
	select {
	case <-flushed:
		return nil
	case <-time.After(timeout):
		return errors.Errorf("drain timed out after %s", timeout)
	}
}

// Close stops the scheduler, rejects further publishes and releases the
// transports the client owns. Use a defer statement to make sure
// resources are closed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cron.Stop()
	close(c.done)
	c.queue.close()

	if c.ownsTransports {
		if br := c.Broker(); br != nil {
			br.Close()
		}
		if be := c.Backend(); be != nil {
			be.Close()
		}
	}
	log.Info("gocelery client stopped.")
}

// dispatchLoop is the only goroutine that talks to the broker. It
// drains the queue in FIFO order, so id generation order and wire send
// order agree for a single client.
func (c *Client) dispatchLoop() {
	for {
		m, ok := c.queue.pop()
		if !ok {
			return
		}
		if err := c.awaitReady(); err != nil {
			c.report(&DispatchError{TaskID: m.id, Reason: ErrNotReady, Cause: err})
			c.pending.Done()
			continue
		}
		c.send(m)
		c.pending.Done()
	}
}

// awaitReady parks the dispatch loop until the gate opens. No message
// is sent to the broker before that.
func (c *Client) awaitReady() error {
	if c.config.ReadyTimeout <= 0 {
		select {
		case <-c.gate.ready():
			return nil
		case <-c.done:
			return ErrClientClosed
		}
	}
	select {
	case <-c.gate.ready():
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-time.After(c.config.ReadyTimeout):
		return errors.Errorf("not ready after %s", c.config.ReadyTimeout)
	}
}

func (c *Client) send(m *outbound) {
	body, err := EncodeTaskMessage(m.id, m.name, m.args, m.kwargs)
	if err != nil {
		c.report(&DispatchError{TaskID: m.id, Reason: ErrNotEncodable, Cause: err})
		return
	}

	br := c.Broker()
	if br == nil {
		c.report(&DispatchError{TaskID: m.id, Reason: ErrTransport})
		return
	}
	message := &broker.Message{
		Timestamp:   time.Now(),
		ContentType: JSON,
		Body:        []byte(body),
	}
	if err := br.Publish(c.config.DefaultQueue, message); err != nil {
		c.report(&DispatchError{TaskID: m.id, Reason: ErrTransport, Cause: errors.Wrap(err, 0)})
		return
	}
	log.Debug("Published task: ", m.name, " ID: ", m.id)

	if c.config.SendEvents {
		c.sendTaskSentEvent(m)
	}
}

func (c *Client) sendTaskSentEvent(m *outbound) {
	s, err := serializer.NewSerializer(JSON)
	if err != nil {
		return
	}
	payload, err := s.Serialize(NewTaskSentEvent(m.id, m.name, m.args, m.kwargs, c.config.DefaultQueue))
	if err != nil {
		log.Error("Cannot serialize task-sent event: ", err)
		return
	}
	message := &broker.Message{
		Timestamp:   time.Now(),
		ContentType: JSON,
		Body:        payload,
	}
	if err := c.Broker().PublishEvent(TaskSent.RoutingKey(), message); err != nil {
		log.Error("Failed to publish task-sent event: ", err)
	}
}

// report logs the dispatch failure and makes it observable to callers.
func (c *Client) report(derr *DispatchError) {
	log.Error(derr.Error())
	select {
	case c.failures <- derr:
	default:
		log.Warn("Dispatch failure dropped: failure channel is full")
	}
}
