package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maltedev/amazon-search-scraper/internal/models"
	"github.com/maltedev/amazon-search-scraper/internal/scraper"
)

const outcomeHeader = "X-Search-Outcome"

// Searcher runs one search for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*models.SearchOutcome, error)
}

type Handlers struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewHandlers(searcher Searcher, logger *slog.Logger) *Handlers {
	return &Handlers{
		searcher: searcher,
		logger:   logger.With("component", "api"),
	}
}

// SearchResponse is the envelope of the v1 search endpoint. Unlike the
// compatibility endpoint it tells a blocked page apart from an empty result.
type SearchResponse struct {
	Status    string                 `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
	Products  []models.ProductRecord `json:"products"`
	ItemsSeen int                    `json:"items_seen"`
	Discarded int                    `json:"discarded"`
}

// Scrape handles GET /api/scrape?keyword=... and answers with a bare list of
// products. Blocked pages produce an empty list.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	outcome, ok := h.runSearch(w, r)
	if !ok {
		return
	}

	w.Header().Set(outcomeHeader, outcome.Status())
	h.respondJSON(w, http.StatusOK, outcome.Products)
}

// Search handles GET /api/v1/search?keyword=...
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	outcome, ok := h.runSearch(w, r)
	if !ok {
		return
	}

	w.Header().Set(outcomeHeader, outcome.Status())
	h.respondJSON(w, http.StatusOK, SearchResponse{
		Status:    outcome.Status(),
		Reason:    outcome.Reason,
		Products:  outcome.Products,
		ItemsSeen: outcome.ItemsSeen,
		Discarded: outcome.Discarded,
	})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) runSearch(w http.ResponseWriter, r *http.Request) (*models.SearchOutcome, bool) {
	keyword := r.URL.Query().Get("keyword")

	outcome, err := h.searcher.Search(r.Context(), keyword)
	if err != nil {
		if errors.Is(err, scraper.ErrEmptyKeyword) {
			h.respondError(w, http.StatusBadRequest, "Keyword is required.")
			return nil, false
		}
		h.logger.Error("failed to scrape search results", "error", err, "keyword", keyword)
		h.respondError(w, http.StatusInternalServerError, "Failed to scrape Amazon data.")
		return nil, false
	}

	if outcome.Products == nil {
		outcome.Products = make([]models.ProductRecord, 0)
	}
	return outcome, true
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
