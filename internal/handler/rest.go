package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/reverse-auction/internal/auction"
	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Form fields of a bid submission.
const (
	formUserID = "user_id"
	formItemID = "item_id"
	formBid    = "bid"
)

var errEmptyBody = errors.New("request body is empty")

// RESTHandler serves the auctioneer and bidder routes.
type RESTHandler struct {
	service AuctionService
	logger  *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(s AuctionService, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		service: s,
		logger:  logger,
	}
}

// RegisterRoutes registers the auction routes with the router. Collection
// routes answer with and without the trailing slash.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)

	for _, path := range []string{"/auction", "/auction/"} {
		router.HandleFunc(path, h.StartAuction).Methods(http.MethodPost)
		router.HandleFunc(path, h.ResolveResults).Methods(http.MethodGet)
	}
	router.HandleFunc("/auction/items", h.ListItems).Methods(http.MethodGet)

	for _, path := range []string{"/bidding", "/bidding/"} {
		router.HandleFunc(path, h.PlaceBid).Methods(http.MethodPost)
		router.HandleFunc(path, h.GetResults).Methods(http.MethodGet)
	}
	router.HandleFunc("/bidding/{user_id}", h.GetUserBids).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

// StartAuction handles POST /auction/ requests. The body is a form (or a
// JSON object) mapping item names to starting prices.
func (h *RESTHandler) StartAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prices, err := h.decodeCatalog(w, r)
	if err != nil {
		h.logger.Warn("invalid item list", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, ReasonInvalidArgument, err.Error())
		return
	}

	items, err := h.service.StartAuction(ctx, prices)
	if err != nil {
		h.handleServiceError(w, err, "start auction")
		return
	}

	h.writeJSON(w, http.StatusAccepted, items)
}

// ResolveResults handles GET /auction/ requests.
func (h *RESTHandler) ResolveResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ResolveResults(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "resolve results")
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}

// ListItems handles GET /auction/items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "list items")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// PlaceBid handles POST /bidding/ requests.
func (h *RESTHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, ReasonInvalidArgument, "invalid request body")
		return
	}

	userID := strings.TrimSpace(r.PostForm.Get(formUserID))
	itemID := strings.TrimSpace(r.PostForm.Get(formItemID))
	amount, err := strconv.ParseFloat(strings.TrimSpace(r.PostForm.Get(formBid)), 64)
	if err != nil {
		h.rejectUnparsedBid(w, r, itemID)
		return
	}

	confirmation, err := h.service.PlaceBid(ctx, userID, itemID, amount)
	if err != nil {
		h.handleServiceError(w, err, "place bid")
		return
	}

	h.writeJSON(w, http.StatusAccepted, confirmation)
}

// rejectUnparsedBid answers a bid whose amount is missing or not a number.
// An unknown item is still reported as not found first.
func (h *RESTHandler) rejectUnparsedBid(w http.ResponseWriter, r *http.Request, itemID string) {
	items, err := h.service.Items(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "place bid")
		return
	}
	if _, ok := items[itemID]; !ok {
		h.handleServiceError(w, fmt.Errorf("%w: %q", auction.ErrItemNotFound, itemID), "place bid")
		return
	}
	h.writeError(w, http.StatusBadRequest, ReasonInvalidArgument, "bid must be a number")
}

// GetResults handles GET /bidding/ requests.
func (h *RESTHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GetResults(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "get results")
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}

// GetUserBids handles GET /bidding/{user_id} requests.
func (h *RESTHandler) GetUserBids(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	bids, err := h.service.GetUserBids(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "get user bids")
		return
	}

	h.writeJSON(w, http.StatusOK, bids)
}

// decodeCatalog reads item prices from a JSON object or a form body.
func (h *RESTHandler) decodeCatalog(w http.ResponseWriter, r *http.Request) (map[string]float64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var prices map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&prices); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		if len(prices) == 0 {
			return nil, errEmptyBody
		}
		return prices, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	if len(r.PostForm) == 0 {
		return nil, errEmptyBody
	}

	prices := make(map[string]float64, len(r.PostForm))
	for name, values := range r.PostForm {
		price, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("starting price of %q must be a number", name)
		}
		prices[name] = price
	}

	return prices, nil
}

// handleServiceError maps engine errors to HTTP responses.
func (h *RESTHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, auction.ErrInvalidArgument):
		h.logger.Warn("rejected request", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, ReasonInvalidArgument, err.Error())
	case errors.Is(err, auction.ErrItemNotFound):
		h.writeError(w, http.StatusNotFound, ReasonItemNotFound, "Item not found")
	case errors.Is(err, auction.ErrInvalidBid):
		h.writeError(w, http.StatusNotAcceptable, ReasonBidTooLow, "Bid is too low")
	case errors.Is(err, auction.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, ReasonUserNotFound, "User not found")
	case errors.Is(err, auction.ErrResultsNotReady):
		h.writeError(w, http.StatusNotFound, ReasonResultsNotReady, "Results not ready")
	default:
		h.logger.Error("auction operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, ReasonInternal, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and reason.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, reason, message string) {
	h.writeJSON(w, status, model.ErrorResponse{
		Code:    status,
		Reason:  reason,
		Message: message,
	})
}
