package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/facewatch/internal/watchlist"
)

// WatchlistStore is the reference store surface used by WatchlistHandler.
type WatchlistStore interface {
	Snapshot() *watchlist.Snapshot
	Reload(ctx context.Context) (*watchlist.ReloadReport, error)
}

// WatchlistHandler handles watchlist inspection and reload endpoints.
type WatchlistHandler struct {
	store  WatchlistStore
	logger *slog.Logger
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(store WatchlistStore, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{store: store, logger: logger}
}

// WatchlistResponse describes the current reference snapshot.
type WatchlistResponse struct {
	Names      []string  `json:"names"`
	Embeddings int       `json:"embeddings"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
}

// List returns the identities of the current snapshot.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	names := snap.Names()
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, WatchlistResponse{
		Names:      names,
		Embeddings: snap.Len(),
		LoadedAt:   snap.LoadedAt(),
	})
}

// Reload rebuilds the snapshot from the reference source. Individual
// reference failures are reported in the response, not as an error.
func (h *WatchlistHandler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Reload(r.Context())
	if err != nil {
		h.logger.Error("watchlist reload failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to reload watchlist")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
