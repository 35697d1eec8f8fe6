package infra

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SnapshotChannelPrefix prefixes the pub/sub channel of each order.
const SnapshotChannelPrefix = "orders:"

// SnapshotChannel returns the pub/sub channel carrying orderID's snapshots.
func SnapshotChannel(orderID uuid.UUID) string {
	return SnapshotChannelPrefix + orderID.String()
}

// Broadcaster fans authoritative order snapshots out to every API instance
// through Redis pub/sub; each instance relays them to its SSE subscribers.
type Broadcaster struct {
	rdb *redis.Client
}

func NewBroadcaster(rdb *redis.Client) *Broadcaster {
	return &Broadcaster{rdb: rdb}
}

// Publish sends the encoded snapshot of orderID.
func (b *Broadcaster) Publish(ctx context.Context, orderID uuid.UUID, snapshot []byte) error {
	return b.rdb.Publish(ctx, SnapshotChannel(orderID), snapshot).Err()
}

// Subscribe streams snapshots of orderID until ctx is done. The returned
// channel is closed when the subscription ends.
func (b *Broadcaster) Subscribe(ctx context.Context, orderID uuid.UUID) (<-chan []byte, error) {
	sub := b.rdb.Subscribe(ctx, SnapshotChannel(orderID))
	// Wait for the confirmation so no publish after this call is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				default:
					// Slow consumer: drop; the next snapshot supersedes it.
					log.Warn().Str("order_id", orderID.String()).Msg("broadcast: subscriber lagging, snapshot dropped")
				}
			}
		}
	}()
	return out, nil
}
