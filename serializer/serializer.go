package serializer

import (
	"errors"

	"github.com/taoh/gocelery-client/serializer/json"
)

// Serializer converts messages between their in-memory and wire forms.
type Serializer interface {
	Serialize(interface{}) ([]byte, error)
	Deserialize([]byte, interface{}) error
}

var serializerRegistry = make(map[string]Serializer)

var (
	ErrSerializerNotFound = errors.New("Serializer not found")
)

// RegisterSerializer registers a serializer for a mime content type.
func RegisterSerializer(name string, s Serializer) {
	serializerRegistry[name] = s
}

// NewSerializer returns the serializer registered for the content type.
func NewSerializer(name string) (Serializer, error) {
	if serializer, ok := serializerRegistry[name]; ok {
		return serializer, nil
	}
	return nil, ErrSerializerNotFound
}

func init() {
	RegisterSerializer("application/json", &json.JsonSerializer{})
}
