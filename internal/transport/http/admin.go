package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// AdminService is the influencer-side surface: activities and their stocked
// items.
type AdminService interface {
	CreateActivity(ctx context.Context, in app.CreateActivityInput) (domain.Activity, error)
	CreateItem(ctx context.Context, in app.CreateItemInput) (domain.Item, error)
	ListItems(ctx context.Context, activityID string) ([]domain.Item, error)
	DeleteItem(ctx context.Context, itemID, influencerID string) error
}

func HandleCreateActivity(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createActivityRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		activity, err := svc.CreateActivity(r.Context(), app.CreateActivityInput{
			InfluencerID:   callerID(r),
			Title:          req.Title,
			AccessPassword: req.AccessPassword,
			PasswordHint:   req.PasswordHint,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toActivityResponse(activity))
	}
}

func HandleCreateItem(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		item, err := svc.CreateItem(r.Context(), app.CreateItemInput{
			ActivityID:       chi.URLParam(r, "activityID"),
			InfluencerID:     callerID(r),
			Label:            req.Label,
			Quantity:         req.Quantity,
			BaseShippingCost: req.BaseShippingCost,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toItemResponse(item))
	}
}

func HandleListItems(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListItems(r.Context(), chi.URLParam(r, "activityID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := listItemsResponse{Items: make([]itemResponse, 0, len(items))}
		for _, it := range items {
			resp.Items = append(resp.Items, toItemResponse(it))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleDeleteItem(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteItem(r.Context(), chi.URLParam(r, "itemID"), callerID(r)); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createActivityRequest struct {
	Title          string `json:"title"`
	AccessPassword string `json:"access_password"`
	PasswordHint   string `json:"password_hint"`
}

type createItemRequest struct {
	Label            string  `json:"label"`
	Quantity         int     `json:"quantity"`
	BaseShippingCost float64 `json:"base_shipping_cost"`
}

type activityResponse struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Status              string    `json:"status"`
	AvailableItemsCount int       `json:"available_items_count"`
	PasswordProtected   bool      `json:"password_protected"`
	CreatedAt           time.Time `json:"created_at"`
}

type itemResponse struct {
	ID                string  `json:"id"`
	ActivityID        string  `json:"activity_id"`
	Label             string  `json:"label"`
	OriginalQuantity  int     `json:"original_quantity"`
	RemainingQuantity int     `json:"remaining_quantity"`
	BaseShippingCost  float64 `json:"base_shipping_cost"`
	Status            string  `json:"status"`
}

type listItemsResponse struct {
	Items []itemResponse `json:"items"`
}

func toActivityResponse(a domain.Activity) activityResponse {
	return activityResponse{
		ID:                  a.ID,
		Title:               a.Title,
		Status:              string(a.Status),
		AvailableItemsCount: a.AvailableItemsCount,
		PasswordProtected:   a.PasswordProtected,
		CreatedAt:           a.CreatedAt,
	}
}

func toItemResponse(it domain.Item) itemResponse {
	return itemResponse{
		ID:                it.ID,
		ActivityID:        it.ActivityID,
		Label:             it.Label,
		OriginalQuantity:  it.OriginalQuantity,
		RemainingQuantity: it.RemainingQuantity,
		BaseShippingCost:  it.BaseShippingCost,
		Status:            string(it.Status()),
	}
}
