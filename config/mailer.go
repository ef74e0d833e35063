package config

import (
	"crypto/tls"
	"errors"

	mail "github.com/go-mail/mail/v2"
)

// ErrMailerDisabled is returned by Send when SMTP is not configured.
var ErrMailerDisabled = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// Mailer sends HTML mail over SMTP.
type Mailer struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
}

func NewMailer(s *Settings) *Mailer {
	port := s.SMTPPort
	if port == 0 {
		port = 587
	}
	return &Mailer{
		host:          s.SMTPHost,
		port:          port,
		user:          s.SMTPUser,
		pass:          s.SMTPPass,
		from:          s.SMTPFrom,
		skipTLSVerify: s.SMTPSkipTLSVerify,
	}
}

// Enabled reports whether both host and sender are configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != "" && m.from != ""
}

func (m *Mailer) Send(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Enabled() {
		return ErrMailerDisabled
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.host, m.port, m.user, m.pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.host,
		InsecureSkipVerify: m.skipTLSVerify, // dev only
	}

	return d.DialAndSend(msg)
}
