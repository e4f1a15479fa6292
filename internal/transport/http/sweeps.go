package http

import (
	"context"
	"net/http"

	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// Sweeper runs one pass of a scheduled maintenance job on demand.
type Sweeper interface {
	Run(ctx context.Context) (domain.SweepSummary, error)
}

// HandleSweep exposes a manual trigger for a background sweep, mirroring what
// the scheduler does on its cadence.
func HandleSweep(sweeper Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := sweeper.Run(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "sweep failed")
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{
			Processed: summary.Processed,
			Succeeded: summary.Succeeded,
			Failed:    summary.Failed,
		})
	}
}

type sweepResponse struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
