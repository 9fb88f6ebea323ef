package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Transport carries newline-delimited messages for one session. Reads are
// called from a single goroutine; writes may come from several and must be
// safe for concurrent use.
type Transport interface {
	// ReadLine returns the next message, blocking until one arrives.
	// io.EOF signals the peer closed the connection.
	ReadLine() ([]byte, error)
	WriteLine(data []byte) error
	Close() error
}

// maxLineSize bounds a single inbound message.
const maxLineSize = 4 * 1024 * 1024

// StdioTransport frames messages as newline-delimited lines over a reader and
// writer pair, typically stdin/stdout.
type StdioTransport struct {
	scanner *bufio.Scanner
	writer  io.Writer
	closer  io.Closer
	mu      sync.Mutex
}

// NewStdioTransport wraps r and w as a Transport. If w implements io.Closer,
// Close closes it.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	t := &StdioTransport{scanner: scanner, writer: w}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

func (t *StdioTransport) ReadLine() ([]byte, error) {
	for t.scanner.Scan() {
		line := t.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer between calls.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (t *StdioTransport) WriteLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.writer, "%s\n", data)
	return err
}

func (t *StdioTransport) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
