// Package codec serializes documents to and from the byte representation a
// key-value backend stores. Codecs are injected per backend rather than baked
// into store adapters.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

// ErrNotDocument indicates a payload decoded to something other than an object.
var ErrNotDocument = errors.New("codec: payload is not a document")

// Codec converts documents to bytes and back. Unmarshal must return values
// normalized with document.Normalize.
type Codec interface {
	Name() string
	Marshal(doc document.Document) ([]byte, error)
	Unmarshal(data []byte) (document.Document, error)
}

// ByName returns the codec registered under name ("json", "msgpack", "yaml").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON(), nil
	case "msgpack":
		return MsgPack(), nil
	case "yaml", "yml":
		return YAML(), nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// JSON returns the default codec backed by encoding/json.
func JSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(doc document.Document) ([]byte, error) {
	if doc == nil {
		doc = document.New()
	}
	out, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("codec: json marshal: %w", err)
	}
	return out, nil
}

func (jsonCodec) Unmarshal(data []byte) (document.Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("codec: json unmarshal: %w", err)
	}
	return toDocument(raw)
}

// MsgPack returns a codec backed by vmihailenco/msgpack.
func MsgPack() Codec {
	return msgpackCodec{}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(doc document.Document) ([]byte, error) {
	if doc == nil {
		doc = document.New()
	}
	out, err := msgpack.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("codec: msgpack marshal: %w", err)
	}
	return out, nil
}

func (msgpackCodec) Unmarshal(data []byte) (document.Document, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codec: msgpack unmarshal: %w", err)
	}
	return toDocument(raw)
}

// YAML returns a codec backed by goccy/go-yaml.
func YAML() Codec {
	return yamlCodec{}
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(doc document.Document) ([]byte, error) {
	if doc == nil {
		doc = document.New()
	}
	out, err := yaml.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("codec: yaml marshal: %w", err)
	}
	return out, nil
}

func (yamlCodec) Unmarshal(data []byte) (document.Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codec: yaml unmarshal: %w", err)
	}
	return toDocument(raw)
}

func toDocument(raw any) (document.Document, error) {
	doc, ok := document.FromAny(raw)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotDocument, raw)
	}
	return doc, nil
}
