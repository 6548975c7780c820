// Package mailer delivers auth emails over SMTP
package mailer

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"

	auth "github.com/placesapp/go-auth"
)

// Dialer sends gomail messages, *gomail.Dialer satisfies it
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer implements auth.Mailer
type SMTPMailer struct {
	dialer Dialer
	from   string
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the given SMTP server
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return NewMailer(gomail.NewDialer(host, port, username, password), from)
}

// NewMailer creates a mailer on top of an existing dialer
func NewMailer(dialer Dialer, from string) *SMTPMailer {
	return &SMTPMailer{dialer: dialer, from: from}
}

// Send renders mail and hands it to the SMTP server
func (s *SMTPMailer) Send(ctx context.Context, mail auth.Mail) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before sending email")
	}

	if len(mail.To) == 0 {
		return goerrors.New("email has no recipients", goerrors.CategoryBadInput)
	}

	if err := s.dialer.DialAndSend(s.message(mail)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "smtp delivery failed")
	}
	return nil
}

func (s *SMTPMailer) message(mail auth.Mail) *gomail.Message {
	from := mail.From
	if from == "" {
		from = s.from
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", mail.To...)
	m.SetHeader("Subject", mail.Subject)
	for k, v := range mail.Headers {
		m.SetHeader(k, v)
	}
	m.SetBody("text/html", mail.HTML)
	return m
}
