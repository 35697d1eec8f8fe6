package worker

// archive_sweeper.go
// Background goroutine that periodically hides terminal orders from the live
// order list once their grace period has passed. Archiving never touches the
// ledger; it only stamps archived_at and announces the order downstream.

import (
	"context"
	"time"

	"settlepos/internal/infra"
	"settlepos/internal/metrics"
	"settlepos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const archiveBatchSize = 100

// EventSink publishes order lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// ArchivedEvent is the payload of order.archived.
type ArchivedEvent struct {
	OrderID    string `json:"order_id"`
	Receipt    int    `json:"receipt"`
	Status     string `json:"status"`
	ArchivedAt string `json:"archived_at"`
}

// ArchiveSweeperConfig holds all dependencies for the sweeper goroutine.
type ArchiveSweeperConfig struct {
	Orders   repository.OrderRepository
	Events   EventSink
	Grace    time.Duration
	Interval time.Duration
}

type ArchiveSweeper struct {
	cfg ArchiveSweeperConfig
	now func() time.Time
}

func NewArchiveSweeper(cfg ArchiveSweeperConfig) *ArchiveSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &ArchiveSweeper{cfg: cfg, now: time.Now}
}

// Run ticks every Interval until ctx is cancelled.
func (s *ArchiveSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("grace", s.cfg.Grace).Msg("archive_sweeper: started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("archive_sweeper: shutting down")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("archive_sweeper: sweep failed")
			}
		}
	}
}

// Sweep archives terminal orders untouched for longer than the grace period,
// one batch at a time, and returns how many it archived.
func (s *ArchiveSweeper) Sweep(ctx context.Context) (int, error) {
	archived := 0
	for {
		now := s.now().UTC()
		orders, err := s.cfg.Orders.ListArchivable(ctx, now.Add(-s.cfg.Grace), archiveBatchSize)
		if err != nil {
			return archived, err
		}
		if len(orders) == 0 {
			return archived, nil
		}

		ids := make([]uuid.UUID, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
		}
		if err := s.cfg.Orders.MarkArchived(ctx, ids, now); err != nil {
			return archived, err
		}
		archived += len(orders)
		metrics.ObserveJob("archive", "ok")

		for i := range orders {
			o := &orders[i]
			ev := ArchivedEvent{
				OrderID:    o.ID.String(),
				Receipt:    o.ReceiptNumber,
				Status:     o.Status,
				ArchivedAt: now.Format(time.RFC3339),
			}
			if s.cfg.Events == nil {
				continue
			}
			if err := s.cfg.Events.Publish(ctx, infra.EventOrderArchived, ev); err != nil {
				log.Warn().Err(err).Str("order_id", ev.OrderID).Msg("archive_sweeper: event not published")
			}
		}
		log.Info().Int("count", len(orders)).Msg("archive_sweeper: orders archived")

		if len(orders) < archiveBatchSize {
			return archived, nil
		}
	}
}
