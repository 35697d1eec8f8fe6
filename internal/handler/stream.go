package handler

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"settlepos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SnapshotSource streams the encoded snapshots published for an order.
type SnapshotSource interface {
	Subscribe(ctx context.Context, orderID uuid.UUID) (<-chan []byte, error)
}

type StreamHandler struct {
	orders    service.OrderService
	snapshots SnapshotSource
	heartbeat time.Duration
}

func NewStreamHandler(orders service.OrderService, snapshots SnapshotSource) *StreamHandler {
	return &StreamHandler{orders: orders, snapshots: snapshots, heartbeat: 15 * time.Second}
}

// Stream godoc
// @Summary      Stream order snapshots
// @Description  Server-sent events. The current snapshot is sent first, then every committed change.
// @Tags         orders
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id path string true "Order UUID"
// @Success      200
// @Failure      404  {object} apierror.APIError
// @Router       /v1/orders/{id}/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Subscribe before reading so no commit between the two is lost.
	updates, err := h.snapshots.Subscribe(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	current, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	first, err := json.Marshal(current)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", string(first))
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case raw, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", string(raw))
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		}
	})
}
