package dto

import "github.com/shopspring/decimal"

// ─── Command envelope ───────────────────────────────────────────────────────

// Override is a supervisor's credentials captured at the terminal when the
// acting cashier lacks the grant a sensitive command needs.
type Override struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Command carries the fields every mutating request shares.
type Command struct {
	// CommandID is generated by the terminal; retries reuse it.
	CommandID string    `json:"command_id" validate:"required,uuid"`
	Override  *Override `json:"override"   validate:"omitempty"`
}

type TenderRequest struct {
	Method   string           `json:"method"   validate:"required,oneof=cash card"`
	Tendered *decimal.Decimal `json:"tendered"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenOrderRequest struct {
	Command
}

type AddItemRequest struct {
	Command
	ProductID string   `json:"product_id" validate:"required,uuid"`
	Quantity  int      `json:"quantity"   validate:"required,min=1,max=999"`
	OptionIDs []string `json:"option_ids" validate:"omitempty,dive,required"`
}

type RemoveItemRequest struct {
	Command
	ItemID string `json:"item_id" validate:"required,uuid"`
}

type ItemDiscountRequest struct {
	Command
	ItemID  string          `json:"item_id" validate:"required,uuid"`
	Percent decimal.Decimal `json:"percent"`
}

// AdjustmentRequest sets an order-level discount or surcharge. Omitting
// kind and value clears it.
type AdjustmentRequest struct {
	Command
	Kind  *string          `json:"kind"  validate:"omitempty,oneof=PERCENT FIXED"`
	Value *decimal.Decimal `json:"value"`
}

type CompItemRequest struct {
	Command
	ItemID   string `json:"item_id"  validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason"   validate:"required,max=200"`
}

type UncompItemRequest struct {
	Command
	ItemID   string `json:"item_id"  validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type SplitLineRequest struct {
	ItemID   string `json:"item_id"  validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type SplitByItemsRequest struct {
	Command
	Items  []SplitLineRequest `json:"items"  validate:"required,min=1,dive"`
	Tender TenderRequest      `json:"tender" validate:"required"`
}

type SplitByAmountRequest struct {
	Command
	Amount decimal.Decimal `json:"amount"`
	Tender TenderRequest   `json:"tender" validate:"required"`
}

type StartAASplitRequest struct {
	Command
	TotalShares int           `json:"total_shares" validate:"required,min=1,max=100"`
	PayShares   int           `json:"pay_shares"   validate:"required,min=1"`
	Tender      TenderRequest `json:"tender"       validate:"required"`
}

type PayAASplitRequest struct {
	Command
	PayShares int           `json:"pay_shares" validate:"required,min=1"`
	Tender    TenderRequest `json:"tender"     validate:"required"`
}

type AddPaymentRequest struct {
	Command
	Amount decimal.Decimal `json:"amount"`
	Tender TenderRequest   `json:"tender" validate:"required"`
}

// CompleteOrderRequest closes the order. With a tender, the outstanding
// remainder is paid first.
type CompleteOrderRequest struct {
	Command
	Tender *TenderRequest `json:"tender" validate:"omitempty"`
}

type VoidOrderRequest struct {
	Command
	Kind   string `json:"kind"   validate:"required,oneof=CANCELLED LOSS_SETTLED"`
	Reason string `json:"reason" validate:"max=200"`
}

type CancelPaymentRequest struct {
	Command
	PaymentID string `json:"payment_id" validate:"required,uuid"`
	Reason    string `json:"reason"     validate:"required,max=200"`
}

type RedeemStampRequest struct {
	Command
	ActivityID string  `json:"activity_id" validate:"required,uuid"`
	ItemID     *string `json:"item_id"     validate:"omitempty,uuid"`
}

type CancelStampRequest struct {
	Command
	ActivityID string `json:"activity_id" validate:"required,uuid"`
}

type LinkMemberRequest struct {
	Command
	MemberCode string `json:"member_code" validate:"required,max=50"`
}

type UnlinkMemberRequest struct {
	Command
}

type RelocateOrderRequest struct {
	Command
	Status        string `json:"status"          validate:"required,oneof=MERGED MOVED"`
	TargetOrderID string `json:"target_order_id" validate:"required,uuid"`
}

// StampMatchQuery is bound from the query string of GET /v1/orders/:id/stamps/match.
type StampMatchQuery struct {
	ActivityID string `form:"activity_id" validate:"required,uuid"`
}

// OrderFilter is bound from the query string of GET /v1/orders.
type OrderFilter struct {
	Status string `form:"status"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OptionResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// ItemSnapshot carries the line breakdown of one item so terminals never
// recompute prices.
type ItemSnapshot struct {
	ID                string           `json:"id"`
	Position          int              `json:"position"`
	ProductID         string           `json:"product_id"`
	Name              string           `json:"name"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	OriginalUnitPrice decimal.Decimal  `json:"original_unit_price"`
	Options           []OptionResponse `json:"options"`
	Base              decimal.Decimal  `json:"base"`
	RuleDiscount      decimal.Decimal  `json:"rule_discount"`
	RuleSurcharge     decimal.Decimal  `json:"rule_surcharge"`
	AppliedRuleIDs    []string         `json:"applied_rule_ids"`
	ManualDiscountPct decimal.Decimal  `json:"manual_discount_pct"`
	ManualDiscount    decimal.Decimal  `json:"manual_discount"`
	CompQuantity      int              `json:"comp_quantity"`
	CompReason        *string          `json:"comp_reason,omitempty"`
	CompAmount        decimal.Decimal  `json:"comp_amount"`
	PaidQuantity      int              `json:"paid_quantity"`
	PayableQuantity   int              `json:"payable_quantity"`
	EffectiveUnit     decimal.Decimal  `json:"effective_unit_price"`
	LineTotal         decimal.Decimal  `json:"line_total"`
	Tax               decimal.Decimal  `json:"tax"`
	RewardItem        bool             `json:"reward_item"`
	Removed           bool             `json:"removed"`
}

type PaymentSnapshot struct {
	ID           string           `json:"id"`
	Method       string           `json:"method"`
	Amount       decimal.Decimal  `json:"amount"`
	Tendered     *decimal.Decimal `json:"tendered,omitempty"`
	Change       *decimal.Decimal `json:"change,omitempty"`
	SplitID      *string          `json:"split_id,omitempty"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    string           `json:"created_at"`
	Cancelled    bool             `json:"cancelled"`
	CancelReason *string          `json:"cancel_reason,omitempty"`
	CancelledBy  *string          `json:"cancelled_by,omitempty"`
}

type AllocationSnapshot struct {
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type SplitSnapshot struct {
	ID          string               `json:"id"`
	Kind        string               `json:"kind"`
	Amount      decimal.Decimal      `json:"amount"`
	Allocations []AllocationSnapshot `json:"allocations,omitempty"`
	Shares      int                  `json:"shares,omitempty"`
	TotalShares int                  `json:"total_shares,omitempty"`
	PaymentID   string               `json:"payment_id"`
	Cancelled   bool                 `json:"cancelled"`
}

type RedemptionSnapshot struct {
	ID         string `json:"id"`
	ActivityID string `json:"activity_id"`
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	AddedItem  bool   `json:"added_item"`
	Cancelled  bool   `json:"cancelled"`
}

type AdjustmentSnapshot struct {
	Kind   string          `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Amount decimal.Decimal `json:"amount"`
	By     *string         `json:"by,omitempty"`
}

type AASnapshot struct {
	TotalShares     int             `json:"total_shares"`
	PaidShares      int             `json:"paid_shares"`
	NextShareAmount decimal.Decimal `json:"next_share_amount"`
}

// OrderSnapshot is the self-contained state pushed to every terminal
// watching an order. Terminals replace their view with it wholesale.
type OrderSnapshot struct {
	ID              string               `json:"id"`
	ReceiptNumber   int                  `json:"receipt_number"`
	Status          string               `json:"status"`
	VoidKind        *string              `json:"void_kind,omitempty"`
	VoidReason      *string              `json:"void_reason,omitempty"`
	LossAmount      decimal.Decimal      `json:"loss_amount"`
	Version         int                  `json:"version"`
	Items           []ItemSnapshot       `json:"items"`
	Payments        []PaymentSnapshot    `json:"payments"`
	Splits          []SplitSnapshot      `json:"splits"`
	Redemptions     []RedemptionSnapshot `json:"redemptions"`
	SplitMode       string               `json:"split_mode"`
	AA              *AASnapshot          `json:"aa,omitempty"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	RuleDiscount    decimal.Decimal      `json:"rule_discount_total"`
	RuleSurcharge   decimal.Decimal      `json:"rule_surcharge_total"`
	ManualDiscount  decimal.Decimal      `json:"manual_item_discount_total"`
	CompTotal       decimal.Decimal      `json:"comp_total"`
	ItemsTotal      decimal.Decimal      `json:"items_total"`
	OrderDiscount   *AdjustmentSnapshot  `json:"order_discount,omitempty"`
	OrderSurcharge  *AdjustmentSnapshot  `json:"order_surcharge,omitempty"`
	TaxTotal        decimal.Decimal      `json:"tax_total"`
	Total           decimal.Decimal      `json:"total"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
	MemberID        *string              `json:"member_id,omitempty"`
	MemberName      *string              `json:"member_name,omitempty"`
	RelocatedTo     *string              `json:"relocated_to,omitempty"`
	CreatedBy       string               `json:"created_by"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
	CompletedAt     *string              `json:"completed_at,omitempty"`
	VoidedAt        *string              `json:"voided_at,omitempty"`
}

type OrderListResponse struct {
	Data  []OrderSnapshot `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// StampMatchResponse previews how a redemption would be applied.
type StampMatchResponse struct {
	ActivityID     string         `json:"activity_id"`
	Kind           string         `json:"kind"`
	ItemID         *string        `json:"item_id,omitempty"`
	Candidates     []ItemSnapshot `json:"candidates,omitempty"`
	CurrentStamps  int            `json:"current_stamps"`
	BonusStamps    int            `json:"bonus_stamps"`
	RequiredStamps int            `json:"required_stamps"`
}
