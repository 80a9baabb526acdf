package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun wraps Mailgun client configuration.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string
	// APIBase overrides the Mailgun endpoint, e.g. mg.APIBaseEU.
	APIBase string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender}
}

// Send sends an email via Mailgun. html is optional; if provided it will be used as HTML body.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	client := mg.NewMailgun(m.Domain, m.APIKey)
	if m.APIBase != "" {
		client.SetAPIBase(m.APIBase)
	}
	msg := client.NewMessage(m.Sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _, err := client.Send(c, msg)
	return err
}

// ErrUnrenderable marks jobs that can never be sent, so retrying is pointless.
var ErrUnrenderable = errors.New("email job cannot be rendered")

// Deliver resolves job and hands it to s. Resolve failures wrap
// ErrUnrenderable; send failures are returned as they are.
func Deliver(ctx context.Context, s Sender, job EmailJob) error {
	subject, text, html, err := job.Resolve()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnrenderable, err)
	}
	return s.Send(ctx, job.To, subject, text, html)
}
