package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidPhone        = "invalid_phone"
	codeInvalidAddress      = "invalid_address"
	codeInvalidQuantity     = "invalid_quantity"
	codeNoLineItems         = "no_line_items"
	codeMixedActivities     = "mixed_activities"
	codeInsufficientStock   = "insufficient_stock"
	codeClaimLimitExceeded  = "claim_limit_exceeded"
	codeActivityNotFound    = "activity_not_found"
	codeItemNotFound        = "item_not_found"
	codeOrderNotFound       = "order_not_found"
	codePaymentNotFound     = "payment_not_found"
	codeForbidden           = "forbidden"
	codeOrderNotCancellable = "order_not_cancellable"
	codeOrderNotPayable     = "order_not_payable"
	codeOrderNotPaid        = "order_not_paid"
	codeOrderAlreadyShipped = "order_already_shipped"
	codeAlreadyRefunded     = "already_refunded"
	codePaymentNotReviewing = "payment_not_reviewing"
	codeItemHasOrders       = "item_has_orders"
	codeWrongPassword       = "wrong_password"
	codeAccessLocked        = "access_locked"
	codeTransactionRequired = "transaction_id_required"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	CurrentCount *int   `json:"current_count,omitempty"`
	MaxLimit     *int   `json:"max_limit,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps service-layer sentinels onto HTTP statuses. The
// claim-limit error additionally carries the fan's current count so the UI can
// explain the rejection.
func writeServiceError(w http.ResponseWriter, err error) {
	var limitErr *app.ClaimLimitError
	if errors.As(err, &limitErr) {
		writeErrorResponse(w, http.StatusConflict, errorResponse{
			Error:        limitErr.Error(),
			Code:         codeClaimLimitExceeded,
			CurrentCount: &limitErr.CurrentCount,
			MaxLimit:     &limitErr.MaxLimit,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, codeInvalidPhone, err.Error())
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, codeInvalidAddress, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrNoLineItems):
		writeError(w, http.StatusBadRequest, codeNoLineItems, err.Error())
	case errors.Is(err, domain.ErrMixedActivities):
		writeError(w, http.StatusBadRequest, codeMixedActivities, err.Error())
	case errors.Is(err, domain.ErrTransactionIDRequired):
		writeError(w, http.StatusBadRequest, codeTransactionRequired, err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, codeActivityNotFound, err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, codeItemNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, codePaymentNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrOrderNotCancellable):
		writeError(w, http.StatusConflict, codeOrderNotCancellable, err.Error())
	case errors.Is(err, domain.ErrOrderNotPayable):
		writeError(w, http.StatusConflict, codeOrderNotPayable, err.Error())
	case errors.Is(err, domain.ErrOrderNotPaid):
		writeError(w, http.StatusConflict, codeOrderNotPaid, err.Error())
	case errors.Is(err, domain.ErrOrderAlreadyShipped):
		writeError(w, http.StatusConflict, codeOrderAlreadyShipped, err.Error())
	case errors.Is(err, domain.ErrAlreadyRefunded):
		writeError(w, http.StatusConflict, codeAlreadyRefunded, err.Error())
	case errors.Is(err, domain.ErrPaymentNotReviewing):
		writeError(w, http.StatusConflict, codePaymentNotReviewing, err.Error())
	case errors.Is(err, domain.ErrItemHasOrders):
		writeError(w, http.StatusConflict, codeItemHasOrders, err.Error())
	case errors.Is(err, domain.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, codeWrongPassword, err.Error())
	case errors.Is(err, domain.ErrAccessLocked):
		writeError(w, http.StatusTooManyRequests, codeAccessLocked, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
