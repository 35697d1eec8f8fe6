package handler

import (
	"net/http"
	"strconv"

	"settlepos/internal/apierror"
	"settlepos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct{ rdb *redis.Client }

func NewAdminHandler(rdb *redis.Client) *AdminHandler { return &AdminHandler{rdb: rdb} }

// DLQ godoc
// @Summary      Dead letter queue depths
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object} map[string]int64
// @Router       /v1/admin/dlq [get]
func (h *AdminHandler) DLQ(c *gin.Context) {
	depths, err := worker.DLQDepths(c.Request.Context(), h.rdb)
	if err != nil {
		respondError(c, apierror.ErrInternal.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, depths)
}

// RequeueDLQ godoc
// @Summary      Move dead letters back onto their queue
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        queue path  string true  "Queue name" Enums(drawer, email)
// @Param        limit query int    false "Max jobs" default(100)
// @Success      200  {object} map[string]int
// @Failure      404  {object} apierror.APIError
// @Router       /v1/admin/dlq/{queue}/requeue [post]
func (h *AdminHandler) RequeueDLQ(c *gin.Context) {
	queues := map[string]string{"drawer": worker.QueueDrawer, "email": worker.QueueEmail}
	queue, ok := queues[c.Param("queue")]
	if !ok {
		respondError(c, apierror.ErrNotFound.With("queue %q", c.Param("queue")))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		respondError(c, apierror.ErrValidation.WithFields(map[string]string{"limit": "min"}))
		return
	}
	n, err := worker.RequeueDLQ(c.Request.Context(), h.rdb, queue, limit)
	if err != nil {
		respondError(c, apierror.ErrInternal.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}
