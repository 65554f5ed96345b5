package automerge

import (
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-session-automerge/pkg/codec"
	"github.com/goliatone/go-session-automerge/pkg/document"
)

// HostEncoding converts between the string payload a host hands to the
// session handler and a Document. An empty payload decodes to an empty Document.
type HostEncoding interface {
	Name() string
	Encode(doc document.Document) (string, error)
	Decode(data string) (document.Document, error)
}

// JSONEncoding is the default host encoding: the document as a JSON object.
func JSONEncoding() HostEncoding {
	return CodecEncoding{Codec: codec.JSON()}
}

// CodecEncoding wraps any Codec. Binary codecs should set Base64 so the
// payload survives hosts that expect text.
type CodecEncoding struct {
	Codec  codec.Codec
	Base64 bool
}

// Name implements HostEncoding.
func (e CodecEncoding) Name() string {
	name := e.codec().Name()
	if e.Base64 {
		return name + "+base64"
	}
	return name
}

// Encode implements HostEncoding.
func (e CodecEncoding) Encode(doc document.Document) (string, error) {
	if doc == nil {
		doc = document.New()
	}
	data, err := e.codec().Marshal(doc)
	if err != nil {
		return "", err
	}
	if e.Base64 {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}

// Decode implements HostEncoding.
func (e CodecEncoding) Decode(data string) (document.Document, error) {
	if strings.TrimSpace(data) == "" {
		return document.New(), nil
	}
	raw := []byte(data)
	if e.Base64 {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}
	return e.codec().Unmarshal(raw)
}

func (e CodecEncoding) codec() codec.Codec {
	if e.Codec == nil {
		return codec.JSON()
	}
	return e.Codec
}

// WithHostEncoding sets the encoding used at the host boundary.
func WithHostEncoding(encoding HostEncoding) Option {
	return func(cfg *config) {
		if encoding != nil {
			cfg.encoding = encoding
		}
	}
}
