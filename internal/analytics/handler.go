package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

// StatsSource is anything that can report aggregated statistics.
type StatsSource interface {
	Stats() AggregatedStats
}

type Handler struct {
	source StatsSource
	logger *slog.Logger
}

func NewHandler(source StatsSource) *Handler {
	return &Handler{
		source: source,
		logger: slog.Default().With("component", "analytics-handler"),
	}
}

// Stats handles GET /api/v1/analytics. The optional top query parameter
// shortens the host and term leaderboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		apperrors.WriteJSON(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "analytics disabled"))
		return
	}
	limit := -1
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			apperrors.WriteJSON(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "top must be a non-negative integer, got %q", s))
			return
		}
		limit = n
	}

	stats := h.source.Stats()
	if limit >= 0 {
		stats.TopHosts = truncate(stats.TopHosts, limit)
		stats.TopTerms = truncate(stats.TopTerms, limit)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func truncate(list []NameCount, n int) []NameCount {
	if len(list) > n {
		return list[:n]
	}
	return list
}
