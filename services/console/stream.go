package console

import (
	"context"
	"io"
)

// StreamPort adapts a plain reader/writer pair (stdin/stdout, a pipe) to
// Port. A background goroutine feeds reads through a channel so that
// RecvSomeContext can honour ctx. It has a single reader.
type StreamPort struct {
	w       io.Writer
	chunks  chan []byte
	err     chan error
	pending []byte // rest of a chunk that did not fit the last buf
}

func NewStreamPort(r io.Reader, w io.Writer) *StreamPort {
	p := &StreamPort{w: w, chunks: make(chan []byte, 4), err: make(chan error, 1)}
	go func() {
		for {
			buf := make([]byte, 64)
			n, err := r.Read(buf)
			if n > 0 {
				p.chunks <- buf[:n]
			}
			if err != nil {
				p.err <- err
				return
			}
		}
	}()
	return p
}

func (p *StreamPort) Write(b []byte) (int, error) { return p.w.Write(b) }

// RecvSomeContext copies up to len(buf) bytes of the next chunk into buf.
// Whatever does not fit is returned by the following calls.
func (p *StreamPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(p.pending) > 0 {
		return p.take(buf), nil
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case c := <-p.chunks:
		p.pending = c
		return p.take(buf), nil
	case err := <-p.err:
		p.err <- err // sticky
		select {
		case c := <-p.chunks:
			p.pending = c
			return p.take(buf), nil
		default:
		}
		<-ctx.Done()
		return 0, err
	}
}

func (p *StreamPort) take(buf []byte) int {
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n
}
