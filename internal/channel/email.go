package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/deadline-tracker/internal/email"
	"github.com/jwalitptl/deadline-tracker/internal/model"
)

const TagEmail = "email"

// RatePolicy bounds sends per recipient. Zero values disable limiting.
type RatePolicy struct {
	TokensPerInterval int
	Interval          time.Duration
}

type emailChannel struct {
	sender   email.Sender
	timeout  time.Duration
	policy   RatePolicy
	limiters *cache.Cache
}

// NewEmailChannel wraps an SMTP sender with a per-recipient rate limit and a
// delivery timeout.
func NewEmailChannel(sender email.Sender, timeout time.Duration, policy RatePolicy) Channel {
	return &emailChannel{
		sender:   sender,
		timeout:  timeout,
		policy:   policy,
		limiters: cache.New(time.Hour, 2*time.Hour),
	}
}

func (c *emailChannel) Tag() string { return TagEmail }

func (c *emailChannel) AddressOf(user *model.User) string { return user.Email }

func (c *emailChannel) limiterFor(recipient string) *rate.Limiter {
	if v, ok := c.limiters.Get(recipient); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(
		rate.Every(c.policy.Interval/time.Duration(c.policy.TokensPerInterval)),
		c.policy.TokensPerInterval,
	)
	c.limiters.SetDefault(recipient, limiter)
	return limiter
}

func (c *emailChannel) Deliver(ctx context.Context, recipient, subject, body string) Result {
	if recipient == "" {
		return Result{
			Outcome: OutcomePermanentFail,
			Err:     fmt.Errorf("recipient has no email address"),
		}
	}

	if c.policy.TokensPerInterval > 0 && c.policy.Interval > 0 {
		if !c.limiterFor(recipient).Allow() {
			return Result{
				Outcome: OutcomeTransientFail,
				Err:     fmt.Errorf("rate limit exceeded for %s", recipient),
			}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sender.Send(sendCtx, recipient, subject, body); err != nil {
		return Result{Outcome: classify(err), Err: err}
	}
	return Result{Outcome: OutcomeDelivered}
}

// classify maps send errors onto outcomes: timeouts and network failures are
// transient, everything else permanent.
func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return OutcomeTransientFail
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return OutcomeTransientFail
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return OutcomeTransientFail
	}
	return OutcomePermanentFail
}
