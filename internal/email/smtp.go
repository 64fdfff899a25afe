// Package email envía notificaciones de seguridad por SMTP.
package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
)

// Sender envía un email. Abstraído para poder inyectar fakes en tests.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender crea un SMTPSender con TLS automático.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

// Send envía un email con contenido HTML y texto plano.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	default:
		// "auto": go-mail negocia STARTTLS si el servidor lo ofrece
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	if s.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{ServerName: s.Host, InsecureSkipVerify: true}
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
