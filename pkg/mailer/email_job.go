package mailer

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-task-manager/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template (with Data) or an explicit Subject plus Text/HTML body is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "welcome"
	Data     map[string]any `json:"data,omitempty"`
}

var ErrEmptyJob = errors.New("email job has no recipient or body")

// Resolve renders the job's template, if any, and returns the final subject
// and bodies.
func (j EmailJob) Resolve() (subject, text, html string, err error) {
	if j.To == "" {
		return "", "", "", ErrEmptyJob
	}
	if j.Template != "" {
		if !templates.Known(j.Template) {
			return "", "", "", fmt.Errorf("unknown email template %q", j.Template)
		}
		return templates.Render(j.Template, j.Data)
	}
	if j.Subject == "" || (j.Text == "" && j.HTML == "") {
		return "", "", "", ErrEmptyJob
	}
	return j.Subject, j.Text, j.HTML, nil
}
