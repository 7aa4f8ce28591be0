package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/MatterDesk/MatterDesk/internal/pkg/env"
)

const (
	// maxConcurrentSends bounds simultaneous SMTP connections.
	maxConcurrentSends = 3

	// sendInterval paces outgoing mail at five messages per second.
	sendInterval = 200 * time.Millisecond
)

// SendFunc matches smtp.SendMail and is injectable for tests.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends templated HTML/text email over a pooled SMTP
// connection: at most three concurrent sends, paced to stay under the
// provider's message rate.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string

	send SendFunc
	sem  chan struct{}
	tick <-chan time.Time
}

// NewSMTPMailer builds a mailer from SMTP_* environment variables.
func NewSMTPMailer() *SMTPMailer {
	sender := env.GetEnv("SMTP_SENDER", "")
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	return &SMTPMailer{
		host:     env.GetEnv("SMTP_HOST", ""),
		port:     env.GetEnv("SMTP_PORT", ""),
		username: env.GetEnv("SMTP_USERNAME", ""),
		password: env.GetEnv("SMTP_PASSWORD", ""),
		sender:   sender,
		send:     smtp.SendMail,
		sem:      make(chan struct{}, maxConcurrentSends),
		tick:     time.Tick(sendInterval),
	}
}

// NewSMTPMailerWithSend builds a mailer with a custom send function.
func NewSMTPMailerWithSend(send SendFunc) *SMTPMailer {
	m := NewSMTPMailer()
	m.send = send
	return m
}

// Send delivers one multipart (HTML + plain text) message.
func (m *SMTPMailer) Send(to, toName, subject, htmlBody, textBody string) error {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()
	<-m.tick

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	recipient := to
	if toName != "" {
		recipient = fmt.Sprintf("%s <%s>", toName, to)
	}

	boundary := "matterdesk-alt"
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.sender, recipient, subject) +
			"MIME-Version: 1.0\r\n" +
			fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary) +
			fmt.Sprintf("--%s\r\n", boundary) +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			textBody + "\r\n" +
			fmt.Sprintf("--%s\r\n", boundary) +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody + "\r\n" +
			fmt.Sprintf("--%s--\r\n", boundary),
	)

	err := m.send(addr, auth, m.sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}
