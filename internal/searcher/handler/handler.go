package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/reload"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/middleware"
)

type Handler struct {
	holder       *reload.Holder
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds the search handlers. queryCache may be nil.
func New(holder *reload.Holder, queryCache *cache.QueryCache, defaultLimit, maxResults int) *Handler {
	return &Handler{
		holder:       holder,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	mode, err := executor.ParseMode(q.Get("mode"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	limit := h.defaultLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}
	req := executor.Request{Query: query, Mode: mode, Weight: q.Get("weight"), Limit: limit}

	gen, err := h.holder.Acquire()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	defer gen.Release()

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		key := cache.Key{Generation: gen.ID, Request: req}
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*executor.SearchResult, error) {
			return gen.Executor.Execute(ctx, req)
		})
	} else {
		result, err = gen.Executor.Execute(ctx, req)
	}
	if err != nil {
		log.Warn("search failed", "query", query, "mode", mode, "error", err)
		h.writeErr(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"mode", mode,
		"generation", gen.ID,
		"total_hits", result.TotalHits,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
		"request_id", middleware.GetRequestID(ctx),
	)
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	}
	h.writeJSON(w, http.StatusOK, result)
}

type indexStats struct {
	Generation string    `json:"generation"`
	Name       string    `json:"name"`
	Mode       string    `json:"mode"`
	Terms      int       `json:"terms"`
	Documents  int       `json:"documents"`
	LoadedAt   time.Time `json:"loaded_at"`
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	gen, err := h.holder.Acquire()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	defer gen.Release()
	h.writeJSON(w, http.StatusOK, indexStats{
		Generation: gen.ID,
		Name:       gen.Index.Name(),
		Mode:       string(gen.Index.Mode()),
		Terms:      gen.Index.Size(),
		Documents:  gen.Index.Stats().Size(),
		LoadedAt:   gen.LoadedAt,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"circuit":  h.cache.State().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Ready reports whether a generation is loaded, for the readiness check.
func (h *Handler) Ready(ctx context.Context) error {
	if h.holder.Current() == nil {
		return apperrors.ErrIndexNotReady
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to a status code. Internal failures are not echoed to
// the client.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.writeError(w, status, "search failed")
		return
	}
	h.writeError(w, status, err.Error())
}
