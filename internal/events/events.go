package events

import (
	"stablesend/internal/interfaces"
	"stablesend/internal/models"

	"github.com/rs/zerolog"
)

// LogEmitter wraps another emitter and logs every transfer event before
// forwarding it.
type LogEmitter struct {
	WrappedEmitter interfaces.EventEmitter
	Logger         *zerolog.Logger
}

// EmitEvent logs the transfer transition and forwards to the wrapped emitter
func (e *LogEmitter) EmitEvent(event models.TransferEvent) error {
	e.Logger.Info().
		Str("transferId", event.TransferID).
		Str("kind", string(event.Kind)).
		Str("status", string(event.Status)).
		Str("sourceNetwork", event.SourceNetwork.String()).
		Str("destNetwork", event.DestNetwork.String()).
		Str("amount", event.Amount).
		Str("depositRef", event.DepositRef).
		Str("withdrawRef", event.WithdrawRef).
		Str("mainRef", event.MainRef).
		Time("timestamp", event.Timestamp).
		Msg("Transfer transition")

	if e.WrappedEmitter != nil {
		return e.WrappedEmitter.EmitEvent(event)
	}
	return nil
}
