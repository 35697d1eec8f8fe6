package apierror

import "net/http"

// 0xxx general
var (
	ErrInvalidRequest = define("E0001", http.StatusBadRequest, "INVALID_REQUEST")
	ErrNotFound       = define("E0002", http.StatusNotFound, "NOT_FOUND")
	ErrConflict       = define("E0003", http.StatusConflict, "CONFLICT")
	ErrCommandReused  = define("E0004", http.StatusConflict, "COMMAND_ID_REUSED")
	ErrValidation     = define("E0005", http.StatusUnprocessableEntity, "VALIDATION_FAILED")
	ErrRateLimited    = define("E0006", http.StatusTooManyRequests, "RATE_LIMITED")
)

// 1xxx user
var (
	ErrUserNotFound = define("E1001", http.StatusNotFound, "USER_NOT_FOUND")
	ErrUserInactive = define("E1002", http.StatusForbidden, "USER_INACTIVE")
)

// 2xxx permission
var (
	ErrPermissionDenied   = define("E2001", http.StatusForbidden, "PERMISSION_DENIED")
	ErrEscalationRequired = define("E2002", http.StatusForbidden, "ESCALATION_REQUIRED")
	ErrOverrideRejected   = define("E2003", http.StatusForbidden, "OVERRIDE_REJECTED")
)

// 3xxx auth
var (
	ErrAuthRequired       = define("E3001", http.StatusUnauthorized, "AUTH_REQUIRED")
	ErrTokenInvalid       = define("E3002", http.StatusUnauthorized, "TOKEN_INVALID")
	ErrInvalidCredentials = define("E3003", http.StatusUnauthorized, "INVALID_CREDENTIALS")
)

// 4xxx order
var (
	ErrOrderNotFound        = define("E4001", http.StatusNotFound, "ORDER_NOT_FOUND")
	ErrOrderInvalidState    = define("E4002", http.StatusConflict, "ORDER_INVALID_STATE")
	ErrItemNotFound         = define("E4003", http.StatusNotFound, "ITEM_NOT_FOUND")
	ErrQuantityOutOfRange   = define("E4004", http.StatusUnprocessableEntity, "QUANTITY_OUT_OF_RANGE")
	ErrSplitModeLocked      = define("E4005", http.StatusConflict, "SPLIT_MODE_LOCKED")
	ErrStampAlreadyRedeemed = define("E4006", http.StatusConflict, "STAMP_ALREADY_REDEEMED")
	ErrStampsInsufficient   = define("E4007", http.StatusUnprocessableEntity, "STAMPS_INSUFFICIENT")
	ErrNoEligibleItem       = define("E4008", http.StatusUnprocessableEntity, "NO_ELIGIBLE_ITEM")
	ErrSelectionRequired    = define("E4009", http.StatusConflict, "SELECTION_REQUIRED")
	ErrMemberRequired       = define("E4010", http.StatusUnprocessableEntity, "MEMBER_REQUIRED")
	ErrAdjustmentExceeds    = define("E4011", http.StatusUnprocessableEntity, "ADJUSTMENT_EXCEEDS_BALANCE")
	ErrReasonRequired       = define("E4012", http.StatusUnprocessableEntity, "REASON_REQUIRED")
	ErrItemRemoved          = define("E4013", http.StatusConflict, "ITEM_REMOVED")
	ErrItemLocked           = define("E4014", http.StatusConflict, "ITEM_LOCKED")
	ErrRedemptionNotFound   = define("E4015", http.StatusNotFound, "REDEMPTION_NOT_FOUND")
	ErrAANotStarted         = define("E4016", http.StatusConflict, "AA_NOT_STARTED")
	ErrMemberNotFound       = define("E4017", http.StatusNotFound, "MEMBER_NOT_FOUND")
	ErrActivityNotFound     = define("E4018", http.StatusNotFound, "ACTIVITY_NOT_FOUND")
	ErrMemberInUse          = define("E4019", http.StatusConflict, "MEMBER_IN_USE")
)

// 5xxx product
var (
	ErrProductNotFound = define("E5001", http.StatusNotFound, "PRODUCT_NOT_FOUND")
	ErrProductInactive = define("E5002", http.StatusUnprocessableEntity, "PRODUCT_INACTIVE")
	ErrOptionNotFound  = define("E5003", http.StatusUnprocessableEntity, "OPTION_NOT_FOUND")
)

// 6xxx payment
var (
	ErrAmountExceedsRemaining = define("E6001", http.StatusUnprocessableEntity, "AMOUNT_EXCEEDS_REMAINING")
	ErrPaymentNotFound        = define("E6002", http.StatusNotFound, "PAYMENT_NOT_FOUND")
	ErrPaymentCancelled       = define("E6003", http.StatusConflict, "PAYMENT_ALREADY_CANCELLED")
	ErrInvalidAmount          = define("E6004", http.StatusUnprocessableEntity, "INVALID_AMOUNT")
	ErrTenderInsufficient     = define("E6005", http.StatusUnprocessableEntity, "TENDER_INSUFFICIENT")
	ErrOrderPaid              = define("E6006", http.StatusConflict, "ORDER_ALREADY_PAID")
	ErrBalanceOutstanding     = define("E6007", http.StatusConflict, "BALANCE_OUTSTANDING")
	ErrInvalidMethod          = define("E6008", http.StatusUnprocessableEntity, "INVALID_PAYMENT_METHOD")
)

// 9xxx system
var (
	ErrInternal        = define("E9001", http.StatusInternalServerError, "INTERNAL")
	ErrDatabase        = define("E9002", http.StatusInternalServerError, "DATABASE")
	ErrTransaction     = define("E9003", http.StatusInternalServerError, "TRANSACTION")
	ErrConfig          = define("E9004", http.StatusInternalServerError, "CONFIG")
	ErrLedgerInvariant = define("E9005", http.StatusInternalServerError, "LEDGER_INVARIANT")
)
