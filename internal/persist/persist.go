// Package persist implements the "Persistence Sink" collaborator: a place
// to flush the cache store to on teardown and hydrate it from on bootstrap.
// The wire format is one opaque blob — a snappy-compressed YAML document —
// regardless of which Sink stores it, so FileSink and RedisSink share a
// single (de)serialization path.
package persist

import (
	"time"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v3"
)

// Sink stores and retrieves exactly one blob. Read returns (nil, nil) if
// nothing has been stored yet.
type Sink interface {
	Read() ([]byte, error)
	Write(blob []byte) error
}

// StateEntry is one cached lookup result as persisted to a Sink.
type StateEntry struct {
	Host      string    `yaml:"host"`
	Family    string    `yaml:"family"`
	Addrs     []string  `yaml:"addrs"`
	FetchedAt time.Time `yaml:"fetched_at"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// State is the full set of cache entries persisted across a bootstrap /
// teardown cycle.
type State struct {
	Entries []StateEntry `yaml:"entries"`
}

// Marshal encodes state as a snappy-compressed YAML document, the blob
// format every Sink stores and retrieves.
func Marshal(state *State) ([]byte, error) {
	raw, err := yaml.Marshal(state)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// Unmarshal decodes a blob produced by Marshal. A nil or empty blob yields
// an empty State and no error.
func Unmarshal(blob []byte) (*State, error) {
	if len(blob) == 0 {
		return &State{}, nil
	}
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, err
	}
	var state State
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
