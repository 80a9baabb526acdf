package templates

import (
	"time"
)

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		if t.IsZero() {
			return
		}
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithLoginURL(url string) Option { return func(d *EmailData) { d.LoginURL = url } }

// NewWelcomeData fills the fields the welcome template reads, then applies opts.
func NewWelcomeData(appName, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:    name,
		Email:   email,
		Type:    Welcome,
		AppName: appName,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
