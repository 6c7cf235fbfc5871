package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleSender builds a development sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send records and logs msg.
func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.logger.Info("email (console)",
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
