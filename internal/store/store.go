// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// Store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStaleGeneration  = errors.New("store was reset since snapshot")
	errNilItemCallback  = errors.New("update callback cannot be nil")
	errNegativeStartBid = errors.New("starting bid must be a finite non-negative number")
)

// ItemTx is the view of a single item handed to UpdateItem callbacks.
// Changes are staged and committed only when the callback returns nil.
type ItemTx interface {
	// Key returns the item key.
	Key() string

	// Item returns the item as of the start of the transaction.
	Item() model.Item

	// SetLowestBid replaces the item's lowest bid.
	SetLowestBid(bid model.Bid)

	// RecordUserBid upserts the bid into the bidder's record.
	RecordUserBid(userID string, amount float64)
}

// Store defines the auction state: items, per-user bid records and results.
type Store interface {
	// Reset clears items, user records and results together.
	Reset(ctx context.Context) error

	// ReplaceItems swaps in a fresh generation holding only the given items.
	ReplaceItems(ctx context.Context, startingBids map[string]float64) (map[string]model.Item, error)

	// PutItem inserts or overwrites an item with no lowest bid.
	PutItem(ctx context.Context, key string, startingBid float64) error

	// GetItem retrieves an item by key.
	GetItem(ctx context.Context, key string) (*model.Item, error)

	// ListItems returns a snapshot of all items.
	ListItems(ctx context.Context) (model.Snapshot, error)

	// UpdateItem runs fn with exclusive access to one item.
	UpdateItem(ctx context.Context, key string, fn func(tx ItemTx) error) (*model.Item, error)

	// RecordUserBid upserts a bid into the bidder's record.
	RecordUserBid(ctx context.Context, userID, itemKey string, amount float64) error

	// GetUserBids returns the bidder's record.
	GetUserBids(ctx context.Context, userID string) (model.UserBids, error)

	// SetResult stores the winner of an item read at the given generation.
	SetResult(ctx context.Context, generation uint64, itemKey string, winner model.Bid) error

	// ListResults returns all stored results.
	ListResults(ctx context.Context) (map[string]model.Result, error)

	// Generation returns the current generation counter.
	Generation() uint64
}
