package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderLen is the size of the little-endian body length prefix.
	HeaderLen = 4
	// MaxFrameSize bounds the body length of a single frame.
	MaxFrameSize = 100 * 1024
)

var (
	ErrShortHeader    = errors.New("protocol: short frame header")
	ErrFrameSize      = errors.New("protocol: frame length out of range")
	ErrTruncatedFrame = errors.New("protocol: truncated frame body")
)

// ReadFrame reads one length-prefixed body from r. It returns io.EOF when the
// peer closed before sending any header byte. A bad length is rejected after
// consuming only the header.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n == 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	return body, nil
}

// AppendFrame prefixes body with its length and appends the frame to dst.
func AppendFrame(dst, body []byte) ([]byte, error) {
	if len(body) == 0 || len(body) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, len(body))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...), nil
}

// WriteFrame writes body as a single frame with one Write call.
func WriteFrame(w io.Writer, body []byte) error {
	frame, err := AppendFrame(make([]byte, 0, HeaderLen+len(body)), body)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
