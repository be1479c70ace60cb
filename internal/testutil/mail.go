package testutil

import (
	"context"
	"sync"

	"github.com/credittrack/credittrack/internal/mail"
)

// RecordingSender captures messages instead of delivering them.
type RecordingSender struct {
	mu       sync.Mutex
	messages []*mail.Message

	// Err, when set, is returned by Send and nothing is recorded.
	Err error
}

// Send records msg or returns Err.
func (s *RecordingSender) Send(_ context.Context, msg *mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

// Messages returns the recorded messages.
func (s *RecordingSender) Messages() []*mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mail.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Count returns how many messages were recorded.
func (s *RecordingSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
