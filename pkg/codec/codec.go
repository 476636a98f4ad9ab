// Package codec serializes table values for the backing store.
package codec

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Codec encodes and decodes values for backing storage.
type Codec interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the codec identifier recorded with each record.
	Name() string
}

// JSON is the default codec, backed by encoding/json.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return types.CodecJSON }

// JSONIter uses json-iterator in its encoding/json compatible mode, so the
// bytes it writes decode with JSON and the other way round.
type JSONIter struct{}

var _ Codec = JSONIter{}

var iterAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (JSONIter) Marshal(v any) ([]byte, error)      { return iterAPI.Marshal(v) }
func (JSONIter) Unmarshal(data []byte, v any) error { return iterAPI.Unmarshal(data, v) }
func (JSONIter) Name() string                       { return types.CodecJSONIter }

// ByName returns the codec registered under name. An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", types.CodecJSON:
		return JSON{}, nil
	case types.CodecJSONIter:
		return JSONIter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrCodecUnknown, name)
	}
}

// EncodeKey returns the canonical encoding of a table key. encoding/json
// sorts map keys, so equal keys always encode to equal bytes. The key
// encoding is independent of the value codec.
func EncodeKey(key any) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
