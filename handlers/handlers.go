package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"pricecompare/logger"
	"pricecompare/models"
	"pricecompare/scheduler"
	"pricecompare/scraper"
)

const (
	serviceVersion      = "1.0.0"
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Searcher is the search service as seen by the HTTP layer
type Searcher interface {
	Search(ctx context.Context, query string) (*models.SearchResult, error)
	Sources() []models.SourceID
	HistoryEnabled() bool
	RecentSearches(ctx context.Context, limit int) ([]models.SearchHistory, error)
	SearchProducts(ctx context.Context, searchID int64) ([]models.Product, error)
}

// TaskQueue runs searches in the background
type TaskQueue interface {
	Submit(query string) (*models.SearchTask, error)
	GetTask(taskID string) (*models.SearchTask, bool)
	GetStats() scheduler.TaskStats
}

// BreakerReporter exposes per-source circuit state
type BreakerReporter interface {
	BreakerStates() map[models.SourceID]string
}

type Handlers struct {
	search   Searcher
	tasks    TaskQueue
	breakers BreakerReporter
	validate *validator.Validate
	started  time.Time
}

// NewHandlers creates the HTTP handlers. breakers may be nil.
func NewHandlers(search Searcher, tasks TaskQueue, breakers BreakerReporter) *Handlers {
	return &Handlers{
		search:   search,
		tasks:    tasks,
		breakers: breakers,
		validate: validator.New(),
		started:  time.Now(),
	}
}

// RegisterRoutes mounts every endpoint on r
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Home).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/search", h.Search).Methods(http.MethodPost)
	api.HandleFunc("/search/async", h.SearchAsync).Methods(http.MethodPost)
	api.HandleFunc("/tasks/stats", h.GetTaskStats).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskId}", h.GetTaskStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", h.GetHistoryProducts).Methods(http.MethodGet)
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Price Comparison API is running",
		"version": serviceVersion,
	})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":          "healthy",
		"message":         "Server is running",
		"uptime":          time.Since(h.started).Round(time.Second).String(),
		"sources":         h.search.Sources(),
		"history_enabled": h.search.HistoryEnabled(),
	}
	if h.breakers != nil {
		response["breakers"] = h.breakers.BreakerStates()
	}
	writeJSON(w, http.StatusOK, response)
}

// Search runs a comparison and waits for the ranked result
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	logger.Log.Info().Str("query", query).Msg("Search request received")

	result, err := h.search.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, scraper.ErrEmptyQuery) {
			writeQueryError(w, "Search query is required")
			return
		}
		logger.Log.Error().Err(err).Str("query", query).Msg("Search failed")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Success:  false,
			Error:    err.Error(),
			Products: []models.Product{},
		})
		return
	}

	logger.Log.Info().Str("query", query).Int("products", len(result.Products)).Msg("Returning products")
	writeJSON(w, http.StatusOK, models.SearchResponse{
		Success:       true,
		Query:         result.Query,
		TotalProducts: len(result.Products),
		Products:      nonNil(result.Products),
		Sources:       result.Sources,
		Cached:        result.Cached,
	})
}

// SearchAsync queues a comparison and returns the task to poll
func (h *Handlers) SearchAsync(w http.ResponseWriter, r *http.Request) {
	query, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Submit(query)
	switch {
	case errors.Is(err, scraper.ErrEmptyQuery):
		writeQueryError(w, "Search query is required")
		return
	case errors.Is(err, scheduler.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "Search queue is full, try again later")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Log.Info().Str("query", query).Str("task_id", task.ID).Msg("Async search queued")
	writeJSON(w, http.StatusAccepted, task.View())
}

func (h *Handlers) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, exists := h.tasks.GetTask(taskID)
	if !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	writeJSON(w, http.StatusOK, task.View())
}

func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.GetStats())
}

// GetHistory lists recent searches. Without a database the list is empty.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	searches, err := h.search.RecentSearches(r.Context(), limit)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list search history")
		writeError(w, http.StatusInternalServerError, "Failed to get search history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":  h.search.HistoryEnabled(),
		"searches": searches,
	})
}

func (h *Handlers) GetHistoryProducts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid search ID")
		return
	}

	products, err := h.search.SearchProducts(r.Context(), id)
	if err != nil {
		logger.Log.Error().Err(err).Int64("search_id", id).Msg("Failed to get search products")
		writeError(w, http.StatusInternalServerError, "Failed to get search products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             id,
		"total_products": len(products),
		"products":       products,
	})
}

// decodeQuery reads and validates the request body. On failure the response
// has already been written.
func (h *Handlers) decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeQueryError(w, "Invalid request body")
		return "", false
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			writeQueryError(w, "Search query is too long")
			return "", false
		}
		writeQueryError(w, "Search query is required")
		return "", false
	}
	return req.Query, true
}

func nonNil(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeQueryError is the 400 body clients of the search endpoint expect
func writeQueryError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":    message,
		"products": []models.Product{},
	})
}
