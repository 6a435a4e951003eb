package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier satisfies the Notifier contract by logging. Real formatting and
// delivery belong to the external notification service.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n *LogNotifier) PaymentReceived(_ context.Context, to, senderEmail, amount string) error {
	n.Logger.Info().
		Str("to", to).
		Str("from", senderEmail).
		Str("amount", amount).
		Msg("Notify: payment received")
	return nil
}

func (n *LogNotifier) PaymentSent(_ context.Context, to, recipientEmail, amount string) error {
	n.Logger.Info().
		Str("to", to).
		Str("recipient", recipientEmail).
		Str("amount", amount).
		Msg("Notify: payment sent")
	return nil
}

func (n *LogNotifier) Invite(_ context.Context, to, senderEmail, amount string) error {
	n.Logger.Info().
		Str("to", to).
		Str("from", senderEmail).
		Str("amount", amount).
		Msg("Notify: invite")
	return nil
}
