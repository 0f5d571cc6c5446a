package service

import (
	"context"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// Dispatcher is implemented by every dispatcher in this package.
type Dispatcher interface {
	Send(ctx context.Context, job *mailDomain.EmailJob) error
}

// RateLimitedDispatcher throttles outbound sends to a fixed rate shared by all workers.
type RateLimitedDispatcher struct {
	next    Dispatcher
	limiter *rate.Limiter
}

// Send waits for a token and then delegates. A wait that cannot complete before ctx is
// done fails with ErrUnavailable wrapped in a DispatchError so the job takes the retry path.
func (d *RateLimitedDispatcher) Send(ctx context.Context, job *mailDomain.EmailJob) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return mailDomain.NewDispatchError(
			"ratelimit",
			0,
			apperrors.Wrap(apperrors.ErrUnavailable, err.Error()),
		)
	}
	return d.next.Send(ctx, job)
}

// NewRateLimitedDispatcher wraps next with a token bucket of perSecond sends and the given burst.
// A non-positive perSecond disables throttling and returns next unchanged.
func NewRateLimitedDispatcher(next Dispatcher, perSecond float64, burst int) Dispatcher {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedDispatcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}
