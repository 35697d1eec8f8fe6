package apierror

import "strings"

// DefaultLocale is used when the caller sends no usable Accept-Language.
const DefaultLocale = "en"

var fallback = map[string]string{
	"en": "The operation could not be completed. Please try again.",
	"es": "No se pudo completar la operacion. Intente nuevamente.",
}

var messages = map[string]map[CommandCode]string{
	"en": {
		"INVALID_REQUEST":            "The request is malformed.",
		"NOT_FOUND":                  "Resource not found.",
		"CONFLICT":                   "The resource was modified concurrently.",
		"COMMAND_ID_REUSED":          "This command id was already used for a different operation.",
		"VALIDATION_FAILED":          "Some fields are invalid.",
		"RATE_LIMITED":               "Too many requests. Try again in a moment.",
		"USER_NOT_FOUND":             "User not found.",
		"USER_INACTIVE":              "User is inactive.",
		"PERMISSION_DENIED":          "You are not allowed to perform this operation.",
		"ESCALATION_REQUIRED":        "A supervisor must authorise this operation.",
		"OVERRIDE_REJECTED":          "Supervisor authorisation was rejected.",
		"AUTH_REQUIRED":              "Authentication required.",
		"TOKEN_INVALID":              "Session expired or invalid.",
		"INVALID_CREDENTIALS":        "Invalid username or password.",
		"ORDER_NOT_FOUND":            "Order not found.",
		"ORDER_INVALID_STATE":        "The order no longer accepts this operation.",
		"ITEM_NOT_FOUND":             "Item not found on this order.",
		"QUANTITY_OUT_OF_RANGE":      "Quantity is out of range.",
		"SPLIT_MODE_LOCKED":          "This order is already being split another way.",
		"STAMP_ALREADY_REDEEMED":     "This reward was already redeemed on this order.",
		"STAMPS_INSUFFICIENT":        "Not enough stamps to redeem this reward.",
		"NO_ELIGIBLE_ITEM":           "No item on the order is eligible for this reward.",
		"SELECTION_REQUIRED":         "Choose the item the reward applies to.",
		"MEMBER_REQUIRED":            "Link a member to the order first.",
		"ADJUSTMENT_EXCEEDS_BALANCE": "The adjustment exceeds the order balance.",
		"REASON_REQUIRED":            "A reason is required.",
		"ITEM_REMOVED":               "The item was removed from the order.",
		"ITEM_LOCKED":                "The item has payments or comps and cannot be changed.",
		"REDEMPTION_NOT_FOUND":       "No active redemption for this reward.",
		"AA_NOT_STARTED":             "Even split has not been started on this order.",
		"MEMBER_NOT_FOUND":           "Member not found.",
		"ACTIVITY_NOT_FOUND":         "Stamp activity not found.",
		"MEMBER_IN_USE":              "The member has active rewards on this order.",
		"PRODUCT_NOT_FOUND":          "Product not found.",
		"PRODUCT_INACTIVE":           "Product is not available.",
		"OPTION_NOT_FOUND":           "Product option not available.",
		"AMOUNT_EXCEEDS_REMAINING":   "The amount exceeds the remaining balance.",
		"PAYMENT_NOT_FOUND":          "Payment not found.",
		"PAYMENT_ALREADY_CANCELLED":  "The payment was already cancelled.",
		"INVALID_AMOUNT":             "The amount must be greater than zero.",
		"TENDER_INSUFFICIENT":        "Cash tendered is less than the amount due.",
		"ORDER_ALREADY_PAID":         "The order is already paid in full.",
		"BALANCE_OUTSTANDING":        "The order still has a balance to pay.",
		"INVALID_PAYMENT_METHOD":     "Unsupported payment method.",
		"INTERNAL":                   "Internal server error.",
		"DATABASE":                   "The order could not be saved. Retry the operation.",
		"TRANSACTION":                "The order could not be saved. Retry the operation.",
		"CONFIG":                     "The service is misconfigured.",
		"LEDGER_INVARIANT":           "The operation would leave the order inconsistent.",
	},
	"es": {
		"INVALID_REQUEST":            "Solicitud invalida.",
		"NOT_FOUND":                  "Recurso no encontrado.",
		"CONFLICT":                   "El recurso fue modificado por otra terminal.",
		"COMMAND_ID_REUSED":          "El identificador de comando ya se uso para otra operacion.",
		"VALIDATION_FAILED":          "Error de validacion.",
		"RATE_LIMITED":               "Demasiadas solicitudes. Intente nuevamente en un momento.",
		"USER_NOT_FOUND":             "Usuario no encontrado.",
		"USER_INACTIVE":              "Usuario inactivo.",
		"PERMISSION_DENIED":          "Permisos insuficientes.",
		"ESCALATION_REQUIRED":        "Se requiere autorizacion de un supervisor.",
		"OVERRIDE_REJECTED":          "Autorizacion de supervisor rechazada.",
		"AUTH_REQUIRED":              "Autenticacion requerida.",
		"TOKEN_INVALID":              "Token invalido o expirado.",
		"INVALID_CREDENTIALS":        "Credenciales invalidas.",
		"ORDER_NOT_FOUND":            "Orden no encontrada.",
		"ORDER_INVALID_STATE":        "La orden ya no admite esta operacion.",
		"ITEM_NOT_FOUND":             "El item no pertenece a la orden.",
		"QUANTITY_OUT_OF_RANGE":      "Cantidad fuera de rango.",
		"SPLIT_MODE_LOCKED":          "La orden ya se esta dividiendo de otra forma.",
		"STAMP_ALREADY_REDEEMED":     "La recompensa ya fue canjeada en esta orden.",
		"STAMPS_INSUFFICIENT":        "Sellos insuficientes para el canje.",
		"NO_ELIGIBLE_ITEM":           "Ningun item de la orden aplica a la recompensa.",
		"SELECTION_REQUIRED":         "Seleccione el item para la recompensa.",
		"MEMBER_REQUIRED":            "Asocie un cliente a la orden primero.",
		"ADJUSTMENT_EXCEEDS_BALANCE": "El ajuste supera el saldo de la orden.",
		"REASON_REQUIRED":            "Debe indicar un motivo.",
		"ITEM_REMOVED":               "El item fue quitado de la orden.",
		"ITEM_LOCKED":                "El item tiene pagos o cortesias y no puede modificarse.",
		"REDEMPTION_NOT_FOUND":       "No hay un canje activo para esta recompensa.",
		"AA_NOT_STARTED":             "La division en partes iguales no fue iniciada.",
		"MEMBER_NOT_FOUND":           "Cliente no encontrado.",
		"ACTIVITY_NOT_FOUND":         "Promocion de sellos no encontrada.",
		"MEMBER_IN_USE":              "El cliente tiene canjes activos en esta orden.",
		"PRODUCT_NOT_FOUND":          "Producto no encontrado.",
		"PRODUCT_INACTIVE":           "Producto no disponible.",
		"OPTION_NOT_FOUND":           "Opcion de producto no disponible.",
		"AMOUNT_EXCEEDS_REMAINING":   "El monto supera el saldo pendiente.",
		"PAYMENT_NOT_FOUND":          "Pago no encontrado.",
		"PAYMENT_ALREADY_CANCELLED":  "El pago ya fue anulado.",
		"INVALID_AMOUNT":             "El monto debe ser mayor a cero.",
		"TENDER_INSUFFICIENT":        "El efectivo entregado es menor al monto a cobrar.",
		"ORDER_ALREADY_PAID":         "La orden ya esta pagada.",
		"BALANCE_OUTSTANDING":        "La orden tiene saldo pendiente.",
		"INVALID_PAYMENT_METHOD":     "Medio de pago no soportado.",
		"INTERNAL":                   "Error interno del servidor.",
		"DATABASE":                   "No se pudo guardar la orden. Reintente la operacion.",
		"TRANSACTION":                "No se pudo guardar la orden. Reintente la operacion.",
		"CONFIG":                     "El servicio esta mal configurado.",
		"LEDGER_INVARIANT":           "La operacion dejaria la orden inconsistente.",
	},
}

// Message resolves the localized text for a command code. Codes without a
// translation, and unknown locales, fall back to a generic message.
func Message(code CommandCode, locale string) string {
	loc := NormalizeLocale(locale)
	if msg, ok := messages[loc][code]; ok {
		return msg
	}
	return fallback[loc]
}

// NormalizeLocale reduces an Accept-Language value to a supported locale.
func NormalizeLocale(locale string) string {
	if l, ok := SupportedLocale(locale); ok {
		return l
	}
	return DefaultLocale
}

// SupportedLocale reports the primary language of an Accept-Language value
// and whether messages exist for it.
func SupportedLocale(locale string) (string, bool) {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, ",;"); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	_, ok := messages[locale]
	return locale, ok
}
