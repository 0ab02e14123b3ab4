package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/hsr-assistant/hsrdriver/internal/decode"
)

const relayChunkSize = 512

// Relay reads the merged process output until it is closed, decodes it and
// pushes each character to q, echoing the text to tail when non-nil. It
// always finishes by pushing one EOF item. log may be nil.
//
// Relay cannot be interrupted while blocked in Read; callers unblock it by
// closing r.
func Relay(ctx context.Context, r io.Reader, q *Queue, tail io.Writer, log *slog.Logger) {
	defer q.Push(Item{EOF: true})
	if log == nil {
		log = slog.Default()
	}

	var dec decode.Decoder
	emit := func(chunk []byte) {
		text, err := dec.Decode(chunk)
		if err != nil {
			log.WarnContext(ctx, "dropping undecodable output", "error", err)
		}
		if text == "" {
			return
		}
		for _, c := range text {
			q.Push(Item{Char: c})
		}
		if tail != nil {
			_, _ = io.WriteString(tail, text)
		}
	}

	buf := make([]byte, relayChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			emit(buf[:n])
		}
		if err == nil {
			continue
		}
		emit(nil)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			log.DebugContext(ctx, "output stream closed")
		default:
			log.WarnContext(ctx, "reading process output", "error", err)
		}
		return
	}
}
