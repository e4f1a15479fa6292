package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// userIDHeader carries the authenticated caller's identity, set by the
// gateway in front of this service.
const userIDHeader = "X-User-ID"

func callerID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

// OrderCreator is the minimal interface needed to create an order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for claiming items.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		fanID := callerID(r)
		if fanID == "" {
			writeError(w, http.StatusForbidden, codeForbidden, "missing caller identity")
			return
		}

		lines := make([]app.OrderLineInput, 0, len(req.Lines))
		for _, ln := range req.Lines {
			lines = append(lines, app.OrderLineInput{ItemID: ln.ItemID, Quantity: ln.Quantity})
		}

		order, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			FanID:    fanID,
			FanPhone: req.FanPhone,
			Lines:    lines,
			Address: domain.ShippingAddress{
				Province: req.Address.Province,
				City:     req.Address.City,
				District: req.Address.District,
				Street:   req.Address.Street,
			},
			ContactName:  req.ContactName,
			ContactPhone: req.ContactPhone,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

// OrderReader fetches orders on behalf of a caller.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID, actorID string) (domain.Order, error)
	ListOrders(ctx context.Context, filter app.OrderFilter) ([]domain.Order, error)
}

func HandleGetOrder(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "orderID"), callerID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func HandleListOrders(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fanID := callerID(r)
		if fanID == "" {
			writeError(w, http.StatusForbidden, codeForbidden, "missing caller identity")
			return
		}

		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		orders, err := svc.ListOrders(r.Context(), app.OrderFilter{
			FanID:      fanID,
			ActivityID: q.Get("activity_id"),
			Status:     domain.OrderStatus(q.Get("status")),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders))}
		for _, o := range orders {
			resp.Orders = append(resp.Orders, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// OrderCanceller cancels pending unpaid orders.
type OrderCanceller interface {
	CancelOrder(ctx context.Context, orderID, actorID, reason string) error
}

func HandleCancelOrder(svc OrderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cancelOrderRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		err := svc.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), callerID(r), req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

type createOrderRequest struct {
	FanPhone     string             `json:"fan_phone"`
	Lines        []orderLineRequest `json:"lines"`
	Address      addressRequest     `json:"address"`
	ContactName  string             `json:"contact_name"`
	ContactPhone string             `json:"contact_phone"`
}

type orderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type addressRequest struct {
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
	Street   string `json:"street"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	ActivityID      string              `json:"activity_id"`
	Lines           []orderLineResponse `json:"lines"`
	ShippingCost    float64             `json:"shipping_cost"`
	PackagingFee    float64             `json:"packaging_fee"`
	PlatformFee     float64             `json:"platform_fee"`
	TotalAmount     float64             `json:"total_amount"`
	PaymentStatus   string              `json:"payment_status"`
	OrderStatus     string              `json:"order_status"`
	PaymentDeadline time.Time           `json:"payment_deadline"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderLineResponse struct {
	ItemID       string  `json:"item_id"`
	Label        string  `json:"label"`
	Quantity     int     `json:"quantity"`
	PackagingFee float64 `json:"packaging_fee"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, ln := range o.Lines {
		lines = append(lines, orderLineResponse{
			ItemID:       ln.ItemID,
			Label:        ln.Label,
			Quantity:     ln.Quantity,
			PackagingFee: ln.PackagingFee,
		})
	}
	return orderResponse{
		ID:              o.ID,
		ActivityID:      o.ActivityID,
		Lines:           lines,
		ShippingCost:    o.ShippingCost,
		PackagingFee:    o.PackagingFee,
		PlatformFee:     o.PlatformFee,
		TotalAmount:     o.TotalAmount,
		PaymentStatus:   string(o.PaymentStatus),
		OrderStatus:     string(o.OrderStatus),
		PaymentDeadline: o.PaymentDeadline,
		CreatedAt:       o.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
