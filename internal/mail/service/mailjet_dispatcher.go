package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailjet/mailjet-apiv3-go/v4"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// DefaultMailjetBaseURL is the Mailjet API root. The client appends ".1/send" for Send API v3.1.
const DefaultMailjetBaseURL = "https://api.mailjet.com/v3"

const mailjetProvider = "mailjet"

// MailjetConfig holds the credentials and sender identity for the Mailjet dispatcher.
type MailjetConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

type statusKey struct{}

// statusRecorder stores the HTTP status of each response in the *int carried by the request
// context. The SDK drops the status when an error body cannot be decoded.
type statusRecorder struct {
	next http.RoundTripper
}

func (s statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

// MailjetDispatcher sends one message per job through the Mailjet Send API v3.1.
type MailjetDispatcher struct {
	cfg    MailjetConfig
	client *mailjet.Client
	logger *slog.Logger
}

// Send delivers the job with its ID as CustomID. Rejections, transport failures and
// per-message error statuses become a *domain.DispatchError carrying the HTTP status.
func (d *MailjetDispatcher) Send(ctx context.Context, job *mailDomain.EmailJob) error {
	messages := mailjet.MessagesV31{
		Info: []mailjet.InfoMessagesV31{
			{
				From:     &mailjet.RecipientV31{Email: d.cfg.FromEmail, Name: d.cfg.FromName},
				To:       &mailjet.RecipientsV31{{Email: job.Recipient}},
				Subject:  job.Subject,
				HTMLPart: job.Body,
				CustomID: job.CorrelationID(),
			},
		},
	}

	var status int
	res, err := d.client.SendMailV31(&messages, mailjet.WithContext(context.WithValue(ctx, statusKey{}, &status)))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return mailDomain.NewDispatchError(mailjetProvider, 0, ctxErr)
		}
		if status != 0 {
			err = fmt.Errorf("%s: %w", http.StatusText(status), err)
		}
		return mailDomain.NewDispatchError(mailjetProvider, status, err)
	}

	for _, msg := range res.ResultsV31 {
		if msg.Status == "success" {
			continue
		}
		reason := msg.Status
		if len(msg.Errors) > 0 {
			reason = msg.Errors[0].ErrorMessage
		}
		return mailDomain.NewDispatchError(mailjetProvider, status, errors.New(reason))
	}

	d.logger.DebugContext(ctx, "email accepted by mailjet", slog.String("job_id", job.ID.String()))
	return nil
}

// NewMailjetDispatcher creates a Mailjet dispatcher. A nil httpClient gets one bounded by cfg.Timeout.
func NewMailjetDispatcher(cfg MailjetConfig, httpClient *http.Client, logger *slog.Logger) *MailjetDispatcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMailjetBaseURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	recording := *httpClient
	recording.Transport = statusRecorder{next: transport}

	client := mailjet.NewMailjetClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
	client.SetClient(&recording)

	return &MailjetDispatcher{
		cfg:    cfg,
		client: client,
		logger: logger.With(slog.String("provider", mailjetProvider)),
	}
}
