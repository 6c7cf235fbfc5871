package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
)

type emailRenderer interface {
	Render(name string, data interface{}) (subject, text, html string, err error)
}

type emailLogWriter interface {
	Create(ctx context.Context, entry *models.EmailLog) error
}

// EmailService renders templates, delivers them and records every attempt.
type EmailService struct {
	renderer emailRenderer
	sender   mailer.Sender
	logs     emailLogWriter
	baseURL  string
	logger   *zap.Logger
}

// NewEmailService constructs an EmailService. baseURL is exposed to templates as Link when the data carries none.
func NewEmailService(renderer emailRenderer, sender mailer.Sender, logs emailLogWriter, baseURL string, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{renderer: renderer, sender: sender, logs: logs, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// SendTemplate renders and sends one email, then writes its EmailLog row. The delivery error is returned.
func (s *EmailService) SendTemplate(ctx context.Context, req EmailRequest) error {
	data := make(map[string]interface{}, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	if _, ok := data["Link"]; !ok {
		data["Link"] = s.baseURL
	}

	subject, text, html, err := s.renderer.Render(req.Template, data)
	if err != nil {
		return fmt.Errorf("render email %s: %w", req.Template, err)
	}

	msg := mailer.Message{To: req.To, Subject: subject, Text: text, HTML: html}
	sendErr := msg.Validate()
	if sendErr == nil {
		sendErr = s.sender.Send(ctx, msg)
	}

	entry := &models.EmailLog{
		Recipient: req.To.Address,
		Subject:   subject,
		Summary:   summarize(text, models.EmailSummaryLimit),
		Success:   sendErr == nil,
		Type:      req.Template,
		UserID:    req.UserID,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if s.logs != nil {
		if err := s.logs.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to record email log", zap.String("recipient", req.To.Address), zap.Error(err))
		}
	}
	return sendErr
}

func summarize(text string, limit int) string {
	return truncateRunes(strings.Join(strings.Fields(text), " "), limit)
}
