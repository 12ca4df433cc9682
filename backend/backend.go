package backend

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message is a result record in its wire form, keyed by task id in the
// backing store.
type Message struct {
	Timestamp   time.Time
	ContentType string
	Body        []byte
}

// Backend is the result store capability. GetResult returns nil without
// an error when no record exists for the task id yet; that is the
// normal pending state, not a failure.
type Backend interface {
	Connect(string) error
	GetResult(string) (*Message, error)
	SetResult(string, *Message) error
	Close() error
}

var backendRegistery = make(map[string]Backend)

// Register a backend based on its scheme
func Register(scheme string, b Backend) {
	backendRegistery[scheme] = b
}

// New creates and connects a backend based on the uri
func New(uri string) (Backend, error) {
	var scheme = strings.SplitN(uri, "://", 2)[0] // get scheme

	if backend, ok := backendRegistery[scheme]; ok { // check if scheme is registered
		err := backend.Connect(uri)
		if err != nil {
			log.Error("Failed to connect to backend:", err)
			return nil, err
		}
		return backend, nil
	}

	return nil, fmt.Errorf("Unknown backend [%s]", scheme)
}
