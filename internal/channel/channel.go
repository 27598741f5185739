package channel

import (
	"context"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

// Outcome classifies a delivery attempt.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeTransientFail
	OutcomePermanentFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeTransientFail:
		return "transient_fail"
	case OutcomePermanentFail:
		return "permanent_fail"
	}
	return "unknown"
}

// Result carries the outcome of a delivery plus the provider message id when
// the channel reports one.
type Result struct {
	Outcome           Outcome
	ExternalMessageID string
	Err               error
}

// Channel is a delivery mechanism identified by a tag. Implementations must
// be safe for concurrent use.
type Channel interface {
	// Tag identifies the channel ("email", ...).
	Tag() string
	// AddressOf selects the recipient address from the user record.
	AddressOf(user *model.User) string
	// Deliver sends the rendered message. It must respect ctx deadlines.
	Deliver(ctx context.Context, recipient, subject, body string) Result
}
