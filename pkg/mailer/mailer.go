package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	To      []string
	Cc      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when mail is enabled, otherwise a sender that only logs.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &LogSender{logger: logger}
	}
	return NewSMTPSender(cfg)
}

// SMTPSender sends through an SMTP relay with mandatory STARTTLS.
type SMTPSender struct {
	host          string
	port          int
	user          string
	password      string
	from          string
	skipTLSVerify bool
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:          cfg.Host,
		port:          port,
		user:          cfg.User,
		password:      cfg.Password,
		from:          cfg.From,
		skipTLSVerify: cfg.SkipTLSVerify,
	}
}

// Send delivers msg. An empty recipient list is a no-op.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if s.host == "" || s.from == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d := mail.NewDialer(s.host, s.port, s.user, s.password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         s.host,
		InsecureSkipVerify: s.skipTLSVerify, //nolint:gosec // dev relays only
	}

	return d.DialAndSend(BuildMessage(s.from, msg))
}

// BuildMessage renders msg into a go-mail message.
func BuildMessage(from string, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

// LogSender records messages instead of sending them; used when SMTP is disabled.
type LogSender struct {
	logger *zap.Logger
}

// Send logs the message envelope.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail disabled, message not sent",
		zap.Strings("to", msg.To),
		zap.Strings("cc", msg.Cc),
		zap.String("subject", msg.Subject),
	)
	return nil
}
