package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// AccessVerifier guards entry to password-protected activities.
type AccessVerifier interface {
	VerifyPassword(ctx context.Context, activityID, fanID, password string) (app.AccessResult, error)
}

func HandleVerifyPassword(svc AccessVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		result, err := svc.VerifyPassword(r.Context(), chi.URLParam(r, "activityID"), callerID(r), req.Password)
		if err != nil {
			// Wrong-password and locked outcomes still carry hint data.
			if errors.Is(err, domain.ErrWrongPassword) {
				writeJSON(w, http.StatusUnauthorized, verifyPasswordResponse{
					Granted:           false,
					Code:              codeWrongPassword,
					RemainingAttempts: result.RemainingAttempts,
					Hint:              result.Hint,
				})
				return
			}
			if errors.Is(err, domain.ErrAccessLocked) {
				writeJSON(w, http.StatusTooManyRequests, verifyPasswordResponse{
					Granted: false,
					Code:    codeAccessLocked,
					Hint:    result.Hint,
				})
				return
			}
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, verifyPasswordResponse{Granted: result.Granted})
	}
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type verifyPasswordResponse struct {
	Granted           bool   `json:"granted"`
	Code              string `json:"code,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
	Hint              string `json:"hint,omitempty"`
}
