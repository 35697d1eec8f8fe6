package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"settlepos/internal/infra"

	"github.com/rs/zerolog/log"
)

// LossNotice is the payload of a loss settlement email.
type LossNotice struct {
	OrderID      string `json:"order_id"`
	Receipt      int    `json:"receipt"`
	Total        string `json:"total"`
	Paid         string `json:"paid"`
	Loss         string `json:"loss"`
	Reason       string `json:"reason"`
	SettledBy    string `json:"settled_by"`
	AuthorizedBy string `json:"authorized_by"`
	SettledAt    string `json:"settled_at"` // RFC 3339
}

type mailSender interface {
	Send(to, subject, body string) error
}

// EmailWorker mails loss settlement notices to the store's loss report address.
type EmailWorker struct {
	mailer mailSender
	to     string
}

// NewEmailWorker returns nil when SMTP or the recipient is not configured.
func NewEmailWorker(mailer *infra.Mailer, to string) *EmailWorker {
	if !mailer.Enabled() || to == "" {
		return nil
	}
	return &EmailWorker{mailer: mailer, to: to}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var n LossNotice
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	subject, body := renderLossNotice(n)
	err := withRetry(ctx, maxAttempts, func(int) error {
		return w.mailer.Send(w.to, subject, body)
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", n.OrderID).Msg("email_worker: loss notice not sent")
		return err
	}
	log.Info().Str("order_id", n.OrderID).Str("to", w.to).Msg("email_worker: loss notice sent")
	return nil
}

func renderLossNotice(n LossNotice) (string, string) {
	subject := fmt.Sprintf("Loss settled on receipt #%d", n.Receipt)
	var b strings.Builder
	fmt.Fprintf(&b, "Order:      %s\n", n.OrderID)
	fmt.Fprintf(&b, "Receipt:    #%d\n", n.Receipt)
	fmt.Fprintf(&b, "Total:      %s\n", n.Total)
	fmt.Fprintf(&b, "Paid:       %s\n", n.Paid)
	fmt.Fprintf(&b, "Loss:       %s\n", n.Loss)
	fmt.Fprintf(&b, "Reason:     %s\n", n.Reason)
	fmt.Fprintf(&b, "Settled by: %s\n", n.SettledBy)
	if n.AuthorizedBy != "" && n.AuthorizedBy != n.SettledBy {
		fmt.Fprintf(&b, "Authorized: %s\n", n.AuthorizedBy)
	}
	fmt.Fprintf(&b, "At:         %s\n", n.SettledAt)
	return subject, b.String()
}
