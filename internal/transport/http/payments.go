package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// PaymentConfirmer consumes gateway success notifications.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID, transactionID string) error
}

// HandlePaymentWebhook accepts the payment gateway's confirmation callback.
// Duplicate deliveries return 200 like the first one did.
func HandlePaymentWebhook(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.ConfirmPayment(r.Context(), req.OrderID, req.TransactionID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// OfflinePaymentService covers the manual-review payment path.
type OfflinePaymentService interface {
	SubmitOfflinePayment(ctx context.Context, orderID, fanID, proof, method string) (domain.Payment, error)
	ReviewOfflinePayment(ctx context.Context, paymentID, reviewerID string, approve bool, reason string) error
}

func HandleSubmitOfflinePayment(svc OfflinePaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		payment, err := svc.SubmitOfflinePayment(r.Context(), chi.URLParam(r, "orderID"), callerID(r), req.Proof, req.Method)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, paymentResponse{
			ID:      payment.ID,
			OrderID: payment.OrderID,
			Status:  string(payment.Status),
			Amount:  payment.Amount,
		})
	}
}

func HandleReviewPayment(svc OfflinePaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		err := svc.ReviewOfflinePayment(r.Context(), chi.URLParam(r, "paymentID"), callerID(r), req.Approve, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
	}
}

// Refunder reverses paid, unshipped orders.
type Refunder interface {
	Refund(ctx context.Context, orderID, actorID, reason string) error
}

func HandleRefund(svc Refunder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		if err := svc.Refund(r.Context(), chi.URLParam(r, "orderID"), callerID(r), req.Reason); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
	}
}

type paymentWebhookRequest struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

type submitPaymentRequest struct {
	Proof  string `json:"proof"`
	Method string `json:"method"`
}

type reviewPaymentRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type paymentResponse struct {
	ID      string  `json:"id"`
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Amount  float64 `json:"amount"`
}
