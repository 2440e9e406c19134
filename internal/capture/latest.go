package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrSlotClosed = errors.New("frame slot closed")

// LatestSlot is a single-frame mailbox between a capture goroutine and the
// session loop. Put overwrites an unread frame, so the reader always gets
// the most recent one.
type LatestSlot struct {
	ch      chan Frame
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	err     error
	dropped atomic.Uint64
}

func NewLatestSlot() *LatestSlot {
	return &LatestSlot{
		ch:   make(chan Frame, 1),
		done: make(chan struct{}),
	}
}

// Put stores frame, replacing any frame the reader has not taken yet.
// It never blocks. Only one goroutine may call Put.
func (s *LatestSlot) Put(frame Frame) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.ch <- frame:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	s.ch <- frame
}

// Fail closes the slot with err. Pending frames are still delivered first.
func (s *LatestSlot) Fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Get blocks until a frame is available, the slot fails or ctx ends.
func (s *LatestSlot) Get(ctx context.Context) (Frame, error) {
	select {
	case f := <-s.ch:
		return f, nil
	default:
	}

	select {
	case f := <-s.ch:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.ch:
			return f, nil
		default:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err == nil {
			return Frame{}, ErrSlotClosed
		}
		return Frame{}, s.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Dropped returns how many frames were overwritten before being read.
func (s *LatestSlot) Dropped() uint64 {
	return s.dropped.Load()
}
