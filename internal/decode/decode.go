// Package decode turns a raw console byte stream into UTF-8 text one chunk
// at a time, holding back multi-byte sequences split across chunks.
package decode

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// MalformedError reports bytes that could not be decoded. The bytes are
// dropped; decoding continues with the next byte.
type MalformedError struct {
	Bytes []byte
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed utf-8 sequence: % x", e.Bytes)
}

// Decoder is an incremental UTF-8 decoder. It is not safe for concurrent use.
type Decoder struct {
	pending []byte
	dst     []byte
}

// Decode consumes chunk and returns every character completed by it. An
// empty chunk marks end of stream and flushes the buffered tail.
//
// The returned text is valid even when err is non-nil: a *MalformedError
// only lists the bytes that were dropped.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	atEOF := len(chunk) == 0

	src := append(d.pending, chunk...)
	d.pending = nil
	if len(src) == 0 {
		return "", nil
	}
	if cap(d.dst) < len(src) {
		d.dst = make([]byte, len(src))
	}
	dst := d.dst[:len(src)]

	var (
		out     []byte
		dropped []byte
	)
	for len(src) > 0 {
		nDst, nSrc, err := encoding.UTF8Validator.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortSrc):
			// Incomplete trailing sequence, wait for the next chunk.
			d.pending = append([]byte(nil), src...)
			src = nil
		case errors.Is(err, encoding.ErrInvalidUTF8):
			dropped = append(dropped, src[0])
			src = src[1:]
		default:
			return string(out), fmt.Errorf("decoding output: %w", err)
		}
	}

	if len(dropped) > 0 {
		return string(out), &MalformedError{Bytes: dropped}
	}
	return string(out), nil
}

// Pending reports how many bytes are buffered waiting for completion.
func (d *Decoder) Pending() int {
	return len(d.pending)
}
