// Package adapt bridges the engine's channel-based chunk stream to the
// other shapes Go callers commonly want: an io.Reader, a buffered relay
// channel, or a range-over-func iterator, the way the teacher's provider
// streams expose both a pull-based io.Reader underneath and a push-based
// Iter() iterator on top.
package adapt

import (
	"bufio"
	"context"
	"io"
)

// FromReader reads r in chunks of at most bufSize bytes and delivers
// each chunk on the returned channel, closing it on EOF, read error, or
// context cancellation. The returned error channel receives at most one
// value (nil on clean EOF) before it, too, is closed.
func FromReader(ctx context.Context, r io.Reader, bufSize int) (<-chan []byte, <-chan error) {
	if bufSize <= 0 {
		bufSize = 4096
	}
	out := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		buf := make([]byte, bufSize)
		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}
		}
	}()

	return out, errc
}

// ToReader wraps a channel of byte chunks as an io.Reader, for callers
// that need to hand the stream to something expecting a pull-based
// reader (bufio.Scanner, json.Decoder, and similar). Reads block until a
// chunk arrives, the channel closes, or ctx is done.
func ToReader(ctx context.Context, in <-chan []byte) io.Reader {
	return &chanReader{ctx: ctx, in: in}
}

type chanReader struct {
	ctx     context.Context
	in      <-chan []byte
	pending []byte
}

func (c *chanReader) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		select {
		case chunk, ok := <-c.in:
			if !ok {
				return 0, io.EOF
			}
			c.pending = chunk
		case <-c.ctx.Done():
			return 0, c.ctx.Err()
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// LineReader wraps r with a bufio.Scanner split on newlines, matching
// the framing the teacher's provider streams use for server-sent-event
// style payloads.
func LineReader(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}

// Backpressure relays in to a new channel bounded by limit: the producer
// side of in blocks once limit undelivered items have accumulated,
// instead of growing without bound while a slow consumer catches up. A
// limit of 0 or less behaves as an unbuffered (fully synchronous) relay.
func Backpressure[T any](ctx context.Context, in <-chan T, limit int) <-chan T {
	if limit < 0 {
		limit = 0
	}
	out := make(chan T, limit)
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Iter bridges a channel to a Go 1.23 range-over-func iterator, the push
// counterpart to the teacher's io.Reader-backed Iter() method on its
// provider streams. Iteration stops early if the consumer's yield
// returns false, or if ctx is cancelled.
func Iter[T any](ctx context.Context, in <-chan T) func(yield func(T) bool) {
	return func(yield func(T) bool) {
		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				if !yield(v) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
