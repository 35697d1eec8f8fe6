package handler

import (
	"context"
	"net/http"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrdersHandler struct{ svc service.OrderService }

func NewOrdersHandler(svc service.OrderService) *OrdersHandler { return &OrdersHandler{svc: svc} }

// runCommand binds the request, resolves the actor and order id, and answers
// with the post-command snapshot.
func runCommand[R any](c *gin.Context, exec func(context.Context, service.Actor, uuid.UUID, R) (*dto.OrderSnapshot, error)) {
	actor, ok := actorFrom(c)
	if !ok {
		respondError(c, apierror.ErrAuthRequired)
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req R
	if !bindAndValidate(c, &req) {
		return
	}
	snap, err := exec(c.Request.Context(), actor, orderID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// OpenOrder godoc
// @Summary      Open an order
// @Description  Allocates a receipt number. Replaying the same command_id returns the same order.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OpenOrderRequest true "Command"
// @Success      201  {object} dto.OrderSnapshot
// @Failure      422  {object} apierror.APIError
// @Router       /v1/orders [post]
func (h *OrdersHandler) OpenOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		respondError(c, apierror.ErrAuthRequired)
		return
	}
	var req dto.OpenOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	snap, err := h.svc.OpenOrder(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// ListOrders godoc
// @Summary      List orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Order status"
// @Param        page   query int    false "Page"  default(1)
// @Param        limit  query int    false "Limit" default(50)
// @Success      200  {object} dto.OrderListResponse
// @Router       /v1/orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	var filter dto.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrder godoc
// @Summary      Get an order snapshot
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Order UUID"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      404  {object} apierror.APIError
// @Router       /v1/orders/{id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// MatchStamp godoc
// @Summary      Preview a stamp redemption
// @Description  Returns the item the activity's reward would apply to, or the candidates to choose from.
// @Tags         stamps
// @Produce      json
// @Security     BearerAuth
// @Param        id          path  string true "Order UUID"
// @Param        activity_id query string true "Stamp activity UUID"
// @Success      200  {object} dto.StampMatchResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/stamps/match [get]
func (h *OrdersHandler) MatchStamp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q dto.StampMatchQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.MatchStamp(c.Request.Context(), id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Items ─────────────────────────────────────────────────────────────────────

// AddItem godoc
// @Summary      Add an item
// @Description  Price is resolved from the catalog and active pricing rules.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string             true "Order UUID"
// @Param        body body dto.AddItemRequest true "Item"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      404  {object} apierror.APIError
// @Router       /v1/orders/{id}/items [post]
func (h *OrdersHandler) AddItem(c *gin.Context) { runCommand(c, h.svc.AddItem) }

// RemoveItem godoc
// @Summary      Remove an unpaid item
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.RemoveItemRequest true "Item"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/items/remove [post]
func (h *OrdersHandler) RemoveItem(c *gin.Context) { runCommand(c, h.svc.RemoveItem) }

// ApplyItemDiscount godoc
// @Summary      Set a manual percentage discount on an item
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Order UUID"
// @Param        body body dto.ItemDiscountRequest true "Discount"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/items/discount [post]
func (h *OrdersHandler) ApplyItemDiscount(c *gin.Context) { runCommand(c, h.svc.ApplyItemDiscount) }

// CompItem godoc
// @Summary      Comp item units
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string              true "Order UUID"
// @Param        body body dto.CompItemRequest true "Comp"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/items/comp [post]
func (h *OrdersHandler) CompItem(c *gin.Context) { runCommand(c, h.svc.CompItem) }

// UncompItem godoc
// @Summary      Release comped item units
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.UncompItemRequest true "Uncomp"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/items/uncomp [post]
func (h *OrdersHandler) UncompItem(c *gin.Context) { runCommand(c, h.svc.UncompItem) }

// ── Order adjustments ─────────────────────────────────────────────────────────

// ApplyOrderDiscount godoc
// @Summary      Set or clear the whole-order discount
// @Description  Omitting kind and value clears the discount.
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.AdjustmentRequest true "Adjustment"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/discount [post]
func (h *OrdersHandler) ApplyOrderDiscount(c *gin.Context) { runCommand(c, h.svc.ApplyOrderDiscount) }

// ApplyOrderSurcharge godoc
// @Summary      Set or clear the whole-order surcharge
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.AdjustmentRequest true "Adjustment"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/surcharge [post]
func (h *OrdersHandler) ApplyOrderSurcharge(c *gin.Context) { runCommand(c, h.svc.ApplyOrderSurcharge) }

// ── Splits and payments ───────────────────────────────────────────────────────

// SplitByItems godoc
// @Summary      Pay for selected item units
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Order UUID"
// @Param        body body dto.SplitByItemsRequest true "Split"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/splits/items [post]
func (h *OrdersHandler) SplitByItems(c *gin.Context) { runCommand(c, h.svc.SplitByItems) }

// SplitByAmount godoc
// @Summary      Pay an arbitrary amount
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Order UUID"
// @Param        body body dto.SplitByAmountRequest true "Split"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/splits/amount [post]
func (h *OrdersHandler) SplitByAmount(c *gin.Context) { runCommand(c, h.svc.SplitByAmount) }

// StartAASplit godoc
// @Summary      Split evenly and pay the first shares
// @Description  Locks the share count for the rest of the order.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Order UUID"
// @Param        body body dto.StartAASplitRequest true "Split"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/splits/aa [post]
func (h *OrdersHandler) StartAASplit(c *gin.Context) { runCommand(c, h.svc.StartAASplit) }

// PayAASplit godoc
// @Summary      Pay further even shares
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.PayAASplitRequest true "Shares"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/splits/aa/pay [post]
func (h *OrdersHandler) PayAASplit(c *gin.Context) { runCommand(c, h.svc.PayAASplit) }

// AddPayment godoc
// @Summary      Record a payment
// @Description  Cash payments may carry the tendered amount; change is computed server side.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.AddPaymentRequest true "Payment"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      422  {object} apierror.APIError
// @Router       /v1/orders/{id}/payments [post]
func (h *OrdersHandler) AddPayment(c *gin.Context) { runCommand(c, h.svc.AddPayment) }

// CancelPayment godoc
// @Summary      Cancel a payment
// @Description  Reopens a completed order and reverses its stamp credit.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Order UUID"
// @Param        body body dto.CancelPaymentRequest true "Payment"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/payments/cancel [post]
func (h *OrdersHandler) CancelPayment(c *gin.Context) { runCommand(c, h.svc.CancelPayment) }

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// CompleteOrder godoc
// @Summary      Complete the order
// @Description  An optional tender pays the remainder first.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Order UUID"
// @Param        body body dto.CompleteOrderRequest true "Completion"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/complete [post]
func (h *OrdersHandler) CompleteOrder(c *gin.Context) { runCommand(c, h.svc.CompleteOrder) }

// VoidOrder godoc
// @Summary      Void the order
// @Description  LOSS_SETTLED records the unpaid remainder as a loss.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string               true "Order UUID"
// @Param        body body dto.VoidOrderRequest true "Void"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      403  {object} apierror.APIError
// @Router       /v1/orders/{id}/void [post]
func (h *OrdersHandler) VoidOrder(c *gin.Context) { runCommand(c, h.svc.VoidOrder) }

// RelocateOrder godoc
// @Summary      Merge or move the order onto another order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Order UUID"
// @Param        body body dto.RelocateOrderRequest true "Target"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/relocate [post]
func (h *OrdersHandler) RelocateOrder(c *gin.Context) { runCommand(c, h.svc.RelocateOrder) }

// ── Members and stamps ────────────────────────────────────────────────────────

// LinkMember godoc
// @Summary      Link a loyalty member
// @Tags         stamps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Order UUID"
// @Param        body body dto.LinkMemberRequest true "Member"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      404  {object} apierror.APIError
// @Router       /v1/orders/{id}/member [post]
func (h *OrdersHandler) LinkMember(c *gin.Context) { runCommand(c, h.svc.LinkMember) }

// UnlinkMember godoc
// @Summary      Unlink the loyalty member
// @Tags         stamps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Order UUID"
// @Param        body body dto.UnlinkMemberRequest true "Command"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/member/unlink [post]
func (h *OrdersHandler) UnlinkMember(c *gin.Context) { runCommand(c, h.svc.UnlinkMember) }

// RedeemStamp godoc
// @Summary      Redeem a stamp reward
// @Tags         stamps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "Order UUID"
// @Param        body body dto.RedeemStampRequest true "Redemption"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/stamps/redeem [post]
func (h *OrdersHandler) RedeemStamp(c *gin.Context) { runCommand(c, h.svc.RedeemStamp) }

// CancelStampRedemption godoc
// @Summary      Cancel a stamp redemption
// @Tags         stamps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "Order UUID"
// @Param        body body dto.CancelStampRequest true "Activity"
// @Success      200  {object} dto.OrderSnapshot
// @Failure      404  {object} apierror.APIError
// @Router       /v1/orders/{id}/stamps/cancel [post]
func (h *OrdersHandler) CancelStampRedemption(c *gin.Context) {
	runCommand(c, h.svc.CancelStampRedemption)
}
