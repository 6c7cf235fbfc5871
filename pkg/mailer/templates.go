package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Template names understood by Renderer.
const (
	TemplateEnrollmentReceived = "enrollment_request_received"
	TemplateEnrollmentNew      = "enrollment_request_new"
	TemplateEnrollmentStatus   = "enrollment_request_status"
	TemplateApprovalNew        = "approval_request_new"
	TemplateApprovalStatus     = "approval_request_status"
)

//go:embed templates/*.txt templates/*.html
var templateFS embed.FS

// Renderer turns a template name plus data into subject, text and HTML bodies.
type Renderer struct {
	text          *texttemplate.Template
	html          *htmltemplate.Template
	subjectPrefix string
}

// NewRenderer parses the embedded templates.
func NewRenderer(subjectPrefix string) (*Renderer, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &Renderer{text: text, html: html, subjectPrefix: subjectPrefix}, nil
}

// Render executes the named template. Each text template defines "<name>_subject".
func (r *Renderer) Render(name string, data interface{}) (subject, text, html string, err error) {
	var buf bytes.Buffer
	if err = r.text.ExecuteTemplate(&buf, name+"_subject", data); err != nil {
		return "", "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	subject = r.subjectPrefix + strings.TrimSpace(buf.String())

	buf.Reset()
	if err = r.text.ExecuteTemplate(&buf, name+".txt", data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	text = strings.TrimSpace(buf.String())

	buf.Reset()
	if err = r.html.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	html = buf.String()
	return subject, text, html, nil
}
