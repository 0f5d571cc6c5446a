package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJob() *mailDomain.EmailJob {
	return mailDomain.NewEmailJob(mailDomain.EmailMessage{
		Recipient: "user@example.com",
		Subject:   "Welcome",
		Body:      "<p>Hello</p>",
	}, time.Now())
}

func newTestMailjetDispatcher(url string) *MailjetDispatcher {
	return NewMailjetDispatcher(MailjetConfig{
		BaseURL:   url + "/v3",
		APIKey:    "public",
		APISecret: "private",
		FromEmail: "noreply@example.com",
		FromName:  "Mail Queue",
		Timeout:   2 * time.Second,
	}, nil, newTestLogger())
}

func TestMailjetDispatcher_Send(t *testing.T) {
	t.Run("Success_SendsCustomIDAndBasicAuth", func(t *testing.T) {
		job := newTestJob()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v3.1/send", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "public", user)
			assert.Equal(t, "private", pass)

			var payload mailjet.MessagesV31
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			require.Len(t, payload.Info, 1)
			msg := payload.Info[0]
			assert.Equal(t, job.ID.String(), msg.CustomID)
			require.NotNil(t, msg.To)
			assert.Equal(t, "user@example.com", (*msg.To)[0].Email)
			require.NotNil(t, msg.From)
			assert.Equal(t, "noreply@example.com", msg.From.Email)
			assert.Equal(t, "Mail Queue", msg.From.Name)
			assert.Equal(t, "Welcome", msg.Subject)
			assert.Equal(t, "<p>Hello</p>", msg.HTMLPart)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Messages":[{"Status":"success","CustomID":"` + job.ID.String() + `"}]}`))
		}))
		defer server.Close()

		err := newTestMailjetDispatcher(server.URL).Send(context.Background(), job)
		assert.NoError(t, err)
	})

	t.Run("Error_RejectionKeepsStatusCode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ErrorIdentifier":"1","ErrorMessage":"API key authentication/authorization failure","StatusCode":401}`))
		}))
		defer server.Close()

		err := newTestMailjetDispatcher(server.URL).Send(context.Background(), newTestJob())
		require.Error(t, err)

		var dispatchErr *mailDomain.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, "mailjet", dispatchErr.Provider)
		assert.Equal(t, http.StatusUnauthorized, dispatchErr.StatusCode)
		assert.Contains(t, err.Error(), "Unauthorized")
	})

	t.Run("Error_BadRequestKeepsStatusCode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"Messages":[{"Status":"error","Errors":[{"ErrorIdentifier":"2","ErrorCode":"mj-0013","StatusCode":400,"ErrorMessage":"\"user@\" is an invalid email address.","ErrorRelatedTo":["To[0].Email"]}]}]}`))
		}))
		defer server.Close()

		err := newTestMailjetDispatcher(server.URL).Send(context.Background(), newTestJob())

		var dispatchErr *mailDomain.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, http.StatusBadRequest, dispatchErr.StatusCode)
	})

	t.Run("Error_EmptyErrorBodyUsesStatusText", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := newTestMailjetDispatcher(server.URL).Send(context.Background(), newTestJob())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Service Unavailable")

		var dispatchErr *mailDomain.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.StatusCode)
	})

	t.Run("Error_MessageLevelFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Messages":[{"Status":"error","Errors":[{"ErrorMessage":"invalid recipient"}]}]}`))
		}))
		defer server.Close()

		err := newTestMailjetDispatcher(server.URL).Send(context.Background(), newTestJob())
		require.Error(t, err)

		var dispatchErr *mailDomain.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, http.StatusOK, dispatchErr.StatusCode)
		assert.Contains(t, err.Error(), "invalid recipient")
	})

	t.Run("Error_TransportFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		err := newTestMailjetDispatcher(url).Send(context.Background(), newTestJob())
		require.Error(t, err)

		var dispatchErr *mailDomain.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, 0, dispatchErr.StatusCode)
	})

	t.Run("Error_ContextCanceled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := newTestMailjetDispatcher(server.URL).Send(ctx, newTestJob())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewMailjetDispatcher_Defaults(t *testing.T) {
	d := NewMailjetDispatcher(MailjetConfig{}, nil, newTestLogger())
	assert.Equal(t, DefaultMailjetBaseURL, d.cfg.BaseURL)
	assert.NotNil(t, d.client)
}

func TestStatusRecorder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var status int
	ctx := context.WithValue(context.Background(), statusKey{}, &status)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	client := &http.Client{Transport: statusRecorder{next: http.DefaultTransport}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, status)
}
