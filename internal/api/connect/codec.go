// Package connect provides the Connect RPC wall service and its client.
package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// codecName replaces the protojson codec Connect registers by default, so
// plain Go messages travel as application/json.
const codecName = "json"

// Codec marshals messages with encoding/json.
type Codec struct{}

func (Codec) Name() string {
	return codecName
}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	// Empty bodies decode to the zero message.
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}
