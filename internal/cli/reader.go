package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// contextReader reads lines from a terminal while respecting context
// cancellation, so Ctrl+C exits the review session even mid-prompt.
type contextReader struct {
	reader *bufio.Reader
	mu     sync.Mutex
}

func newContextReader(r io.Reader) *contextReader {
	return &contextReader{reader: bufio.NewReader(r)}
}

// readLine reads one trimmed line, returning ErrInputCancelled when ctx ends
// first. A read abandoned by cancellation keeps running in the background
// until the underlying reader yields; the mutex keeps a later read from
// interleaving with it.
func (r *contextReader) readLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		value, err := r.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}
