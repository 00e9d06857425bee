package mocks

import (
	"errors"
	"sync"

	"chat-core/internal/models"
)

// ErrSendFailed is returned by a RecordingSender configured to fail.
var ErrSendFailed = errors.New("send failed")

// RecordingSender records every event pushed to one connection.
type RecordingSender struct {
	mu     sync.Mutex
	events []models.Event
	closed bool
	Fail   bool
}

func (s *RecordingSender) Send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail || s.closed {
		return ErrSendFailed
	}
	s.events = append(s.events, event)
	return nil
}

func (s *RecordingSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of the recorded events.
func (s *RecordingSender) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

// Targets returns the recorded event names in order.
func (s *RecordingSender) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Target)
	}
	return out
}

func (s *RecordingSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
