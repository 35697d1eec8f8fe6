package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"settlepos/internal/infra"

	"github.com/rs/zerolog/log"
)

// kicker is the slice of *infra.DrawerClient the worker needs.
type kicker interface {
	Kick(ctx context.Context, kick infra.DrawerKick) error
}

// DrawerWorker opens the cash drawer after cash payments by calling the
// hardware sidecar. Kicks are retried with backoff; a kick that still fails
// goes to the DLQ so a supervisor can see which payments never popped the
// drawer.
type DrawerWorker struct {
	client kicker
}

func NewDrawerWorker(client *infra.DrawerClient) *DrawerWorker {
	if !client.Enabled() {
		return nil
	}
	return &DrawerWorker{client: client}
}

func (w *DrawerWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var kick infra.DrawerKick
	if err := json.Unmarshal(raw, &kick); err != nil {
		return fmt.Errorf("drawer_worker: invalid payload: %w", err)
	}

	err := withRetry(ctx, maxAttempts, func(attempt int) error {
		err := w.client.Kick(ctx, kick)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Str("order_id", kick.OrderID).
			Str("payment_id", kick.PaymentID).
			Msg("drawer_worker: kick failed")
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("payment_id", kick.PaymentID).Msg("drawer_worker: giving up")
		return err
	}
	log.Info().Str("order_id", kick.OrderID).Str("payment_id", kick.PaymentID).Msg("drawer_worker: drawer opened")
	return nil
}
