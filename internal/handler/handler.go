// Package handler provides HTTP request handlers for the auction API.
package handler

import (
	"context"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// AuctionService is the bid resolution engine as seen by the handlers.
type AuctionService interface {
	StartAuction(ctx context.Context, itemPrices map[string]float64) (map[string]model.Item, error)
	PlaceBid(ctx context.Context, userID, itemKey string, amount float64) (model.Confirmation, error)
	GetUserBids(ctx context.Context, userID string) (model.UserBids, error)
	ResolveResults(ctx context.Context) (map[string]model.Result, error)
	GetResults(ctx context.Context) (map[string]model.Result, error)
	Items(ctx context.Context) (map[string]model.Item, error)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Machine-readable error reasons returned in ErrorResponse.Reason.
const (
	ReasonInvalidArgument = "invalid_argument"
	ReasonItemNotFound    = "item_not_found"
	ReasonBidTooLow       = "bid_too_low"
	ReasonUserNotFound    = "user_not_found"
	ReasonResultsNotReady = "results_not_ready"
	ReasonInternal        = "internal_error"
)
