// Package notify sends account mail.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"hamyon/internal/log"
)

// Message is a single outgoing mail.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through an SMTP relay. gomail dials per message.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *log.Logger
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(host string, port int, user, pass, from string, logger *log.Logger) *SMTPMailer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if from == "" {
		from = user
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	m.logger.InfoContext(ctx, "Mail sent", "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) build(msg Message) (*gomail.Message, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("mail has no recipient")
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		gm.SetBody("text/plain", msg.TextBody)
		gm.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		gm.SetBody("text/html", msg.HTMLBody)
	default:
		gm.SetBody("text/plain", msg.TextBody)
	}
	return gm, nil
}

// Recorder keeps sent messages in memory. Err, when set, is returned
// instead of sending.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

var _ Mailer = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// WelcomeMessage greets a newly registered user.
func WelcomeMessage(username, email string) Message {
	text := fmt.Sprintf("Hello %s,\n\n"+
		"your hamyon account is ready. Create a wallet, add your first income or "+
		"expense and the dashboard will take it from there.\n", username)
	htmlBody := fmt.Sprintf("<p>Hello %s,</p>"+
		"<p>your hamyon account is ready. Create a wallet, add your first income or "+
		"expense and the dashboard will take it from there.</p>", html.EscapeString(username))
	return Message{
		To:       email,
		Subject:  "Welcome to hamyon",
		TextBody: text,
		HTMLBody: htmlBody,
	}
}
