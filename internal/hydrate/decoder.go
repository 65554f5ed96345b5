// Package hydrate turns loosely typed configuration (YAML files, flag maps)
// into typed structs through a JSON round trip, so struct json tags are the
// single source of field names.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// Context identifies where a payload came from. Section is a dotted path to
// the mapping inside the document that should be decoded.
type Context struct {
	Source  string
	Section string
}

func (c Context) String() string {
	source := c.Source
	if source == "" {
		source = "<inline>"
	}
	if c.Section == "" {
		return source
	}
	return source + "#" + c.Section
}

// Hydration stages reported by Error.
const (
	StageParse    = "parse"
	StageSection  = "section"
	StageDefaults = "defaults"
	StageDecode   = "decode"
	StageValidate = "validate"
)

// Error reports which stage of hydration failed for which source.
type Error struct {
	Context Context
	Stage   string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Context, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validator checks a decoded value.
type Validator[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder hydrates values of type T.
type Decoder[T any] struct {
	defaults   map[string]any
	validators []Validator[T]
	strict     bool
	useNumber  bool
}

// WithDefaults fills keys missing from the payload. Nested mappings are
// merged key by key.
func WithDefaults[T any](defaults map[string]any) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.defaults = mergeDefaults(d.defaults, defaults)
	}
}

// WithValidator runs validate after decoding.
func WithValidator[T any](validate Validator[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if validate != nil {
			d.validators = append(d.validators, validate)
		}
	}
}

// WithStrict rejects payload keys that do not map to a field of T.
func WithStrict[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithUseNumber keeps numbers in untyped fields as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.useNumber = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode hydrates T from payload. The payload is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var result T

	current := mergeDefaults(payload, d.defaults)
	buffer, err := json.Marshal(current)
	if err != nil {
		return result, &Error{Context: ctx, Stage: StageDefaults, Err: err}
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	if d.useNumber {
		decoder.UseNumber()
	}
	if err := decoder.Decode(&result); err != nil {
		return result, &Error{Context: ctx, Stage: StageDecode, Err: err}
	}

	for _, validate := range d.validators {
		if err := validate(ctx, &result); err != nil {
			return result, &Error{Context: ctx, Stage: StageValidate, Err: err}
		}
	}
	return result, nil
}

// DecodeYAML parses data and decodes the mapping at ctx.Section, or the whole
// document when Section is empty. A missing section decodes from defaults.
func (d *Decoder[T]) DecodeYAML(ctx Context, data []byte) (T, error) {
	var zero T
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return zero, &Error{Context: ctx, Stage: StageParse, Err: err}
	}
	payload, err := section(document, ctx.Section)
	if err != nil {
		return zero, &Error{Context: ctx, Stage: StageSection, Err: err}
	}
	return d.Decode(ctx, payload)
}

func section(document map[string]any, path string) (map[string]any, error) {
	current := document
	if path == "" {
		return current, nil
	}
	for _, part := range strings.Split(path, ".") {
		raw, ok := current[part]
		if !ok || raw == nil {
			return nil, nil
		}
		next, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q is a %T, not a mapping", part, raw)
		}
		current = next
	}
	return current, nil
}

// mergeDefaults returns a copy of payload with missing keys taken from
// defaults. Neither argument is modified.
func mergeDefaults(payload, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+len(defaults))
	for key, value := range payload {
		out[key] = value
	}
	for key, fallback := range defaults {
		value, ok := out[key]
		if !ok || value == nil {
			out[key] = fallback
			continue
		}
		nested, isMap := value.(map[string]any)
		nestedDefaults, defaultIsMap := fallback.(map[string]any)
		if isMap && defaultIsMap {
			out[key] = mergeDefaults(nested, nestedDefaults)
		}
	}
	return out
}
