package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
	"github.com/telekom/form-relay/pkg/validation"
)

// ErrNoRecipient is returned when no operator address is configured.
var ErrNoRecipient = errors.New("mail recipient is not configured")

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	dialer        Dialer
	host          string
	port          int
	recipient     string
	senderAddress string
	subject       string
	log           *zap.SugaredLogger
}

// NewSender builds a Sender talking SMTP to the configured host.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) *Sender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for internal relays
	}
	return NewSenderWithDialer(cfg, d, log)
}

// NewSenderWithDialer builds a Sender on top of an existing dialer.
func NewSenderWithDialer(cfg config.Mail, d Dialer, log *zap.SugaredLogger) *Sender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	return &Sender{
		dialer:        d,
		host:          cfg.Host,
		port:          cfg.Port,
		recipient:     cfg.Recipient,
		senderAddress: cfg.SenderAddress,
		subject:       cfg.Subject,
		log:           log,
	}
}

// Compose builds the message for a submission without sending it.
func (s *Sender) Compose(sub validation.Submission) (*gomail.Message, error) {
	if s.recipient == "" {
		return nil, ErrNoRecipient
	}
	body, err := RenderSubmission(sub)
	if err != nil {
		return nil, fmt.Errorf("rendering submission body: %w", err)
	}

	from := s.senderAddress
	if from == "" {
		from = sub.Email
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", from, sub.Name)
	msg.SetAddressHeader("Reply-To", sub.Email, sub.Name)
	msg.SetHeader("To", s.recipient)
	msg.SetHeader("Subject", s.subject)
	msg.SetBody("text/plain", body)
	return msg, nil
}

// Send performs a single delivery attempt. gomail has no context support, so
// when ctx ends first the attempt is reported as failed and the SMTP
// conversation is left to finish or time out on its own.
func (s *Sender) Send(ctx context.Context, sub validation.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.Compose(sub)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.host).Inc()
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(msg) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.log.Debugw("Mail send failed", "host", s.host, "sender", sub.Email, "error", err)
		metrics.MailSendFailure.WithLabelValues(s.host).Inc()
		return fmt.Errorf("sending mail via %s: %w", s.host, err)
	}
	s.log.Debugw("Mail sent", "host", s.host, "sender", sub.Email)
	metrics.MailSendSuccess.WithLabelValues(s.host).Inc()
	return nil
}

func (s *Sender) GetHost() string {
	return s.host
}

func (s *Sender) GetPort() int {
	return s.port
}
