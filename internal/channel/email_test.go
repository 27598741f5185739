package channel

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func TestEmailChannelDelivers(t *testing.T) {
	sender := &fakeSender{}
	ch := NewEmailChannel(sender, time.Second, RatePolicy{})

	res := ch.Deliver(context.Background(), "a@example.com", "subj", "body")
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, []string{"a@example.com"}, sender.sent)
}

func TestEmailChannelEmptyRecipientIsPermanent(t *testing.T) {
	ch := NewEmailChannel(&fakeSender{}, time.Second, RatePolicy{})

	res := ch.Deliver(context.Background(), "", "subj", "body")
	assert.Equal(t, OutcomePermanentFail, res.Outcome)
	assert.Error(t, res.Err)
}

func TestEmailChannelRateLimit(t *testing.T) {
	sender := &fakeSender{}
	ch := NewEmailChannel(sender, time.Second, RatePolicy{
		TokensPerInterval: 2,
		Interval:          time.Hour,
	})

	first := ch.Deliver(context.Background(), "a@example.com", "s", "b")
	second := ch.Deliver(context.Background(), "a@example.com", "s", "b")
	third := ch.Deliver(context.Background(), "a@example.com", "s", "b")

	assert.Equal(t, OutcomeDelivered, first.Outcome)
	assert.Equal(t, OutcomeDelivered, second.Outcome)
	assert.Equal(t, OutcomeTransientFail, third.Outcome)

	// A different recipient has its own bucket.
	other := ch.Deliver(context.Background(), "b@example.com", "s", "b")
	assert.Equal(t, OutcomeDelivered, other.Outcome)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeTransientFail, classify(context.DeadlineExceeded))
	assert.Equal(t, OutcomeTransientFail, classify(context.Canceled))
	assert.Equal(t, OutcomeTransientFail, classify(&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}))
	assert.Equal(t, OutcomePermanentFail, classify(fmt.Errorf("550 mailbox unavailable")))
}

func TestEmailChannelClassifiesSendError(t *testing.T) {
	ch := NewEmailChannel(&fakeSender{err: fmt.Errorf("553 bad address")}, time.Second, RatePolicy{})

	res := ch.Deliver(context.Background(), "a@example.com", "s", "b")
	assert.Equal(t, OutcomePermanentFail, res.Outcome)
}

func TestRegistryResolve(t *testing.T) {
	ch := NewEmailChannel(&fakeSender{}, time.Second, RatePolicy{})
	reg := NewRegistry(ch)

	got, err := reg.Resolve(TagEmail)
	require.NoError(t, err)
	assert.Equal(t, TagEmail, got.Tag())

	_, err = reg.Resolve("sms")
	assert.True(t, errors.IsCode(err, errors.ErrChannelUnavailable))
}

func TestEmailChannelAddressOf(t *testing.T) {
	ch := NewEmailChannel(&fakeSender{}, time.Second, RatePolicy{})
	assert.Equal(t, "u@example.com", ch.AddressOf(&model.User{Email: "u@example.com"}))
}
