package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/store"
	"sjsage522/pricemonitor/services/tracker"
)

// AddRequest is the body of a product registration
type AddRequest struct {
	URL string `json:"url"`
}

// StatusResponse reports the monitor state for one chat
type StatusResponse struct {
	CheckIntervalSeconds int64 `json:"check_interval_seconds"`
	Products             int   `json:"products"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handlers exposes the tracker operations over HTTP
type Handlers struct {
	tracker *tracker.Tracker
	log     *logger.Logger
}

// NewHandlers creates the admin handlers
func NewHandlers(t *tracker.Tracker) *Handlers {
	return &Handlers{tracker: t, log: logger.ForAdmin()}
}

// AddProduct resolves the product's current price and starts monitoring it
func (h *Handlers) AddProduct(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}

	entry, err := h.tracker.Add(r.Context(), chatID, req.URL)
	if err != nil {
		h.respondTrackerError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, entry)
}

// ListProducts returns the chat's monitored products, oldest first
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	entries := h.tracker.List(chatID)
	if entries == nil {
		entries = []store.Entry{}
	}
	h.respondJSON(w, http.StatusOK, entries)
}

// RemoveProduct stops monitoring the product given by the url query parameter
func (h *Handlers) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	product, err := h.tracker.Remove(chatID, url)
	if err != nil {
		h.respondTrackerError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

// GetStatus reports the check interval and the chat's product count
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	status := h.tracker.Status(chatID)
	h.respondJSON(w, http.StatusOK, StatusResponse{
		CheckIntervalSeconds: int64(status.CheckInterval.Seconds()),
		Products:             status.Products,
	})
}

func (h *Handlers) chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "chat id must be an integer")
		return 0, false
	}
	return chatID, true
}

// statusFor maps tracker and store errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrPriceUnavailable):
		return http.StatusUnprocessableEntity
	case perrors.Is(err, perrors.ErrorTypeValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondTrackerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Product operation failed")
	}
	h.respondError(w, status, err.Error())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}
