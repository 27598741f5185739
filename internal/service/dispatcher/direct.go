package dispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/channel"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

// DeliverDirect sends an already-rendered message through a channel, logging
// the attempt with no reminder reference. The digest builder uses this path;
// digestRunID ties the log row back to its run.
func (s *Service) DeliverDirect(ctx context.Context, user *model.User, channelTag, subject, body string, digestRunID *uuid.UUID) error {
	ch, err := s.registry.Resolve(channelTag)
	if err != nil {
		return err
	}

	sendLog := &model.SendLog{
		DigestRunID: digestRunID,
		UserID:      user.ID,
		Channel:     channelTag,
		Status:      model.DeliveryStatusAttempting,
		SentAt:      s.clk.Now(),
	}
	if err := s.store.SendLogs().Create(ctx, sendLog); err != nil {
		return err
	}

	result := ch.Deliver(ctx, ch.AddressOf(user), subject, body)
	s.metrics.RemindersDispatched.WithLabelValues(result.Outcome.String()).Inc()

	return s.store.WithTx(ctx, func(tx repository.Store) error {
		sendLog.SentAt = s.clk.Now()
		if result.ExternalMessageID != "" {
			sendLog.ExternalMessageID = &result.ExternalMessageID
		}
		switch result.Outcome {
		case channel.OutcomeDelivered:
			sendLog.Status = model.DeliveryStatusDelivered
		case channel.OutcomeTransientFail:
			sendLog.Status = model.DeliveryStatusTransientFail
		default:
			sendLog.Status = model.DeliveryStatusPermanentFail
		}
		if result.Err != nil {
			msg := result.Err.Error()
			sendLog.LastError = &msg
		}
		if err := tx.SendLogs().Update(ctx, sendLog); err != nil {
			return err
		}
		if result.Err != nil {
			if result.Outcome == channel.OutcomeTransientFail {
				return errors.DeliveryTransient(result.Err)
			}
			return errors.DeliveryPermanent(result.Err)
		}
		return nil
	})
}
