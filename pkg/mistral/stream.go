package mistral

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Stream is a lazy, forward-only sequence of server-sent events decoded
// into T. It reads the underlying body one line at a time, keeping any
// partial line buffered until the rest of it arrives, so events split
// across network reads are reassembled before decoding.
//
// A Stream has at most one consumer. Close may be called from another
// goroutine to abort a blocked read.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
type Stream[T any] struct {
	body   io.ReadCloser
	reader *bufio.Reader

	current T
	err     error
	done    bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// onFragment is called once per decoded event
	onFragment func()
}

// NewStream wraps an open SSE body. The stream owns the body and closes
// it once the sequence ends or Close is called.
func NewStream[T any](body io.ReadCloser) *Stream[T] {
	return &Stream[T]{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next advances to the next decoded event. It returns false when the body
// is exhausted, when a read or decode error occurs, or after Close.
func (s *Stream[T]) Next() bool {
	if s.closed.Load() {
		s.done = true
	}

	for !s.done {
		line, readErr := s.reader.ReadString('\n')
		if readErr != nil {
			// a read failing because the consumer closed the body is not an error
			closedByConsumer := s.closed.Load()
			s.finish()
			if !errors.Is(readErr, io.EOF) {
				if !closedByConsumer {
					s.err = fmt.Errorf("read stream: %w", readErr)
				}
				return false
			}
		}

		payload, ok := dataPayload(line)
		if !ok {
			continue
		}

		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			s.finish()
			s.err = fmt.Errorf("decode stream event: %w", err)
			return false
		}

		s.current = v
		if s.onFragment != nil {
			s.onFragment()
		}
		return true
	}
	return false
}

// Current returns the event decoded by the last successful Next
func (s *Stream[T]) Current() T {
	return s.current
}

// Err returns the error that terminated the stream, if any. Reaching the
// end of the body is not an error.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// All adapts the stream to a range-over-func iterator. A terminating error
// is delivered as the final pair. The stream is closed when iteration stops.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()

		for s.Next() {
			if !yield(s.current, nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func (s *Stream[T]) finish() {
	s.done = true
	s.Close()
}

// dataPayload extracts the payload of a "data:" line. Other SSE fields,
// comments, blank lines and the [DONE] sentinel are rejected.
func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel {
		return "", false
	}
	return payload, true
}
