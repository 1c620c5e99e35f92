package service

import (
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the span size used when none is configured.
const DefaultChunkSize = 64 * 1024

// Chunks yields r in spans of at most size bytes until EOF.
// The yielded slice is reused between iterations and must not be retained.
// A read error is yielded once with a nil slice and ends the sequence.
// The sequence is single-use: it consumes r.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return
			default:
				yield(nil, err)
				return
			}
		}
	}
}
