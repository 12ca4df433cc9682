package json

import "encoding/json"

// JsonSerializer implements the application/json content type, the only
// serialization celery workers accept from this client.
type JsonSerializer struct {
}

func (p *JsonSerializer) Serialize(o interface{}) (bytes []byte, err error) {
	bytes, err = json.Marshal(o)
	return
}

func (p *JsonSerializer) Deserialize(bytes []byte, o interface{}) (err error) {
	return json.Unmarshal(bytes, &o)
}
