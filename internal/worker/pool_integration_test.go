//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"settlepos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPool_FailedKickLandsInDLQ(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	drawer := &DrawerWorker{client: &stubKicker{fails: 99, err: assert.AnError}}
	pool := NewPool(rdb, 1, drawer, nil)
	d := NewDispatcher(rdb)
	require.NoError(t, d.EnqueueDrawerKick(ctx, infra.DrawerKick{OrderID: "o", PaymentID: "p"}))

	raw, err := rdb.BRPop(ctx, time.Second, QueueDrawer).Result()
	require.NoError(t, err)
	pool.processJob(ctx, raw[0], raw[1])

	n, err := DLQLength(ctx, rdb, QueueDrawer)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entry, err := rdb.LPop(ctx, DLQPrefix+QueueDrawer).Result()
	require.NoError(t, err)
	var dl DLQEntry
	require.NoError(t, json.Unmarshal([]byte(entry), &dl))
	assert.Equal(t, jobDrawerKick, dl.JobType)
	assert.Equal(t, maxAttempts, dl.Attempts)
}

func TestRequeueDLQ_RestoresJob(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	SendToDLQ(ctx, rdb, QueueEmail, jobLossNotice, json.RawMessage(`{"order_id":"o"}`), "smtp down", maxAttempts)
	depths, err := DLQDepths(ctx, rdb)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depths[QueueEmail])

	moved, err := RequeueDLQ(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	raw, err := rdb.RPop(ctx, QueueEmail).Result()
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, jobLossNotice, job.Type)
	assert.JSONEq(t, `{"order_id":"o"}`, string(job.Payload))
}
