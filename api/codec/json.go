// Package codec registers the JSON gRPC codec used by every service in api/.
// Messages are plain Go structs; clients select the codec with grpc.CallContentSubtype(Name).
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content-subtype for the JSON codec (content-type application/grpc+json).
const Name = "json"

// JSON implements encoding.Codec with encoding/json.
type JSON struct{}

func init() {
	encoding.RegisterCodec(JSON{})
}

// Marshal encodes v as JSON.
func (JSON) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes JSON data into v. Empty frames decode to the zero message.
func (JSON) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns the codec name.
func (JSON) Name() string {
	return Name
}
