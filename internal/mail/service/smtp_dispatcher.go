package service

import (
	"context"
	"errors"
	"log/slog"
	"net/textproto"

	"gopkg.in/gomail.v2"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

const smtpProvider = "smtp"

// Correlation headers set on every SMTP message. Mailjet's relay reads X-MJ-CustomID.
const (
	HeaderMailjetCustomID = "X-MJ-CustomID"
	HeaderCorrelationID   = "X-Correlation-ID"
)

// SMTPConfig holds the relay address, credentials and sender identity.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher delivers jobs through an SMTP relay, one connection per message.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	sender mailSender
	logger *slog.Logger
}

// Send builds a MIME message for the job and hands it to the relay.
func (d *SMTPDispatcher) Send(ctx context.Context, job *mailDomain.EmailJob) error {
	if err := ctx.Err(); err != nil {
		return mailDomain.NewDispatchError(smtpProvider, 0, err)
	}

	m := d.buildMessage(job)
	if err := d.sender.DialAndSend(m); err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) {
			return mailDomain.NewDispatchError(smtpProvider, protoErr.Code, err)
		}
		return mailDomain.NewDispatchError(smtpProvider, 0, err)
	}

	d.logger.DebugContext(ctx, "email handed to smtp relay", slog.String("job_id", job.ID.String()))
	return nil
}

func (d *SMTPDispatcher) buildMessage(job *mailDomain.EmailJob) *gomail.Message {
	m := gomail.NewMessage()
	if d.cfg.FromName != "" {
		m.SetAddressHeader("From", d.cfg.FromEmail, d.cfg.FromName)
	} else {
		m.SetHeader("From", d.cfg.FromEmail)
	}
	m.SetHeader("To", job.Recipient)
	m.SetHeader("Subject", job.Subject)
	m.SetHeader(HeaderMailjetCustomID, job.CorrelationID())
	m.SetHeader(HeaderCorrelationID, job.CorrelationID())
	m.SetBody("text/html", job.Body)
	return m
}

// NewSMTPDispatcher creates an SMTP dispatcher backed by a gomail dialer.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger.With(slog.String("provider", smtpProvider)),
	}
}
