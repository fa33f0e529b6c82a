package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

var (
	ErrUnknownTag       = errors.New("protocol: unknown message tag")
	ErrMalformedMessage = errors.New("protocol: malformed message")
)

// Marshal encodes m as a JSON object whose first member is the tag.
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(Stamp(m))
}

// Unmarshal reads the tag first, then decodes the body into the matching variant.
// Unknown fields are ignored.
func Unmarshal(body []byte) (Message, error) {
	m, _, err := unmarshal(body)
	return m, err
}

func unmarshal(body []byte) (Message, bool, error) {
	var probe struct {
		Msg *string `json:"msg"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if probe.Msg == nil {
		return nil, false, fmt.Errorf("%w: missing msg field", ErrMalformedMessage)
	}

	tag, legacy, ok := lookupTag(*probe.Msg)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownTag, *probe.Msg)
	}

	m, _ := New(tag)
	if err := json.Unmarshal(body, m); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, tag, err)
	}
	// the payload decode copied the wire spelling into Msg
	m.base().Msg = tag
	return m, legacy, nil
}

// Encode returns the complete frame for m.
func Encode(m Message) ([]byte, error) {
	body, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	return AppendFrame(nil, body)
}

// Decode reads and decodes one frame from r.
func Decode(r io.Reader) (Message, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(body)
}

// Codec is the per-connection codec. It starts with canonical tag names and
// switches to the legacy spelling once the peer has used it.
type Codec struct {
	legacy atomic.Bool
}

func NewCodec() *Codec {
	return &Codec{}
}

// Legacy reports whether the peer has spoken legacy tag names.
func (c *Codec) Legacy() bool { return c.legacy.Load() }

// SetLegacy forces the outbound spelling.
func (c *Codec) SetLegacy(v bool) { c.legacy.Store(v) }

func (c *Codec) Encode(m Message) ([]byte, error) {
	body, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	if c.legacy.Load() {
		body = renameTag(body, m.Tag())
	}
	return AppendFrame(nil, body)
}

func (c *Codec) Decode(r io.Reader) (Message, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	m, legacy, err := unmarshal(body)
	if err != nil {
		return nil, err
	}
	if legacy {
		c.legacy.Store(true)
	}
	return m, nil
}

// renameTag swaps the canonical tag for its legacy spelling. Base is the first
// embedded field of every variant, so the tag is always the leading member.
func renameTag(body []byte, t Tag) []byte {
	name := t.LegacyName()
	if name == string(t) {
		return body
	}
	canonical := []byte(`{"msg":"` + string(t) + `"`)
	if !bytes.HasPrefix(body, canonical) {
		return body
	}
	out := make([]byte, 0, len(body)+len(name)-len(t))
	out = append(out, `{"msg":"`+name+`"`...)
	return append(out, body[len(canonical):]...)
}
