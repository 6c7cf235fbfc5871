// Package mailer renders named email templates and hands them to a delivery backend.
package mailer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

// ErrNoRecipient is returned for messages without a usable address.
var ErrNoRecipient = errors.New("email has no recipient")

// Message is a rendered email ready for delivery.
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// Validate checks the message can be handed to a sender.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To.Address) == "" {
		return ErrNoRecipient
	}
	if _, err := mail.ParseAddress(m.To.Address); err != nil {
		return err
	}
	return nil
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
