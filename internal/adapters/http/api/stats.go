package api

import (
	"context"
	"net/http"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
	"github.com/okian/framerank/pkg/logger"
)

// StatsProvider defines the interface for reading the scan count.
type StatsProvider interface {
	ScanCount(ctx context.Context) (int64, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	logger        logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, l logger.Logger) *StatsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &StatsHandler{statsProvider: statsProvider, logger: l.Named("api")}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := h.statsProvider.ScanCount(r.Context())
	if err != nil {
		h.logger.Warn(r.Context(), "scan count unavailable", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, model.CodeInternal, "Scan count unavailable")
		return
	}
	writeJSON(w, http.StatusOK, types.Stats{Count: n})
}
