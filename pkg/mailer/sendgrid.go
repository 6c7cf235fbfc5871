package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	key  string
	host string
	from *sgmail.Email
}

// NewSendGridSender builds a sender; host may be empty to use the public API.
func NewSendGridSender(key, fromName, fromAddress, host string) *SendGridSender {
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{key: key, host: host, from: sgmail.NewEmail(fromName, fromAddress)}
}

// Send posts the message and treats any non-2xx answer as a failure.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
