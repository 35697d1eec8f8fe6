package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Serializer runs commands for the same order one at a time, in arrival
// order, while different orders proceed in parallel. A lane goroutine lives
// only while its order has queued work.
type Serializer struct {
	mu    sync.Mutex
	lanes map[uuid.UUID]*lane
}

type lane struct {
	queue   []*laneJob
	running bool
}

type laneJob struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func NewSerializer() *Serializer {
	return &Serializer{lanes: make(map[uuid.UUID]*lane)}
}

// Do queues fn on key's lane and waits for it. Once queued, fn runs to
// completion even if ctx is cancelled; the caller just stops waiting.
func (s *Serializer) Do(ctx context.Context, key uuid.UUID, fn func(ctx context.Context) error) error {
	j := &laneJob{ctx: context.WithoutCancel(ctx), fn: fn, done: make(chan error, 1)}

	s.mu.Lock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
	}
	l.queue = append(l.queue, j)
	if !l.running {
		l.running = true
		go s.drain(key, l)
	}
	s.mu.Unlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer) drain(key uuid.UUID, l *lane) {
	for {
		s.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue = l.queue[1:]
		s.mu.Unlock()

		j.done <- j.run()
	}
}

func (j *laneJob) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serializer: command panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}

// Active returns the number of orders with queued or running commands.
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}
