// Package model defines data structures used throughout the application.
package model

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Validation errors for auction values.
var (
	ErrEmptyItemKey       = errors.New("item key cannot be empty")
	ErrEmptyBidder        = errors.New("bidder cannot be empty")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrNonFiniteAmount    = errors.New("amount must be a finite number")
	ErrItemKeyTooLong     = errors.New("item key cannot exceed 255 characters")
	ErrBidderIDTooLong    = errors.New("bidder cannot exceed 255 characters")
	errMalformedLowestBid = errors.New("lowest bid must be null or an object")
)

// MaxKeyLength bounds item keys and bidder IDs.
const MaxKeyLength = 255

// Bid is a single accepted offer from a bidder on an item.
type Bid struct {
	Bidder string  `json:"bidder"`
	Amount float64 `json:"amount"`
}

// LowestBid is the running minimum of an item. The zero value is absent.
type LowestBid struct {
	bid     Bid
	present bool
}

// SomeBid returns a present LowestBid holding b.
func SomeBid(b Bid) LowestBid {
	return LowestBid{bid: b, present: true}
}

// NoBid returns an absent LowestBid.
func NoBid() LowestBid {
	return LowestBid{}
}

// Get returns the bid and whether one is present.
func (l LowestBid) Get() (Bid, bool) {
	return l.bid, l.present
}

// Present reports whether a lowest bid has been recorded.
func (l LowestBid) Present() bool {
	return l.present
}

// MarshalJSON encodes an absent bid as null.
func (l LowestBid) MarshalJSON() ([]byte, error) {
	if !l.present {
		return []byte("null"), nil
	}
	return json.Marshal(l.bid)
}

// UnmarshalJSON decodes null as absent.
func (l *LowestBid) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = LowestBid{}
		return nil
	}
	if len(data) == 0 || data[0] != '{' {
		return errMalformedLowestBid
	}
	var b Bid
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*l = SomeBid(b)
	return nil
}

// Item is an auctioned good with a starting price and a running lowest bid.
type Item struct {
	StartingBid float64   `json:"starting_bid"`
	LowestBid   LowestBid `json:"lowest_bid"`
}

// UserBids maps item keys to the amount a single bidder last offered.
type UserBids map[string]float64

// Result is the winning bid of one item.
type Result struct {
	LowestBidder string  `json:"lowest_bidder"`
	LowestBid    float64 `json:"lowest_bid"`
}

// NewResult builds a Result from the winning bid.
func NewResult(b Bid) Result {
	return Result{LowestBidder: b.Bidder, LowestBid: b.Amount}
}

// Snapshot is a copy of the item collection tagged with the store
// generation it was read from.
type Snapshot struct {
	Generation uint64
	Items      map[string]Item
}

// Confirmation echoes an accepted bid as {user: {item: amount}}.
type Confirmation map[string]UserBids

// NewConfirmation builds the confirmation for one accepted bid.
func NewConfirmation(userID, itemKey string, amount float64) Confirmation {
	return Confirmation{userID: UserBids{itemKey: amount}}
}

// ValidateAmount checks that an amount is a finite, non-negative number.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrNonFiniteAmount
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// ValidateItemKey checks an item key.
func ValidateItemKey(key string) error {
	if key == "" {
		return ErrEmptyItemKey
	}
	if len(key) > MaxKeyLength {
		return ErrItemKeyTooLong
	}
	return nil
}

// ValidateBidder checks a bidder ID.
func ValidateBidder(userID string) error {
	if userID == "" {
		return ErrEmptyBidder
	}
	if len(userID) > MaxKeyLength {
		return ErrBidderIDTooLong
	}
	return nil
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Event types published on the auction event stream.
const (
	EventAuctionStarted   = "auction_started"
	EventBidAccepted      = "bid_accepted"
	EventLowestBidChanged = "lowest_bid_changed"
	EventResultsResolved  = "results_resolved"
)

// Event is a notification about a state change in the auction.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Item      string    `json:"item,omitempty"`
	Bidder    string    `json:"bidder,omitempty"`
	Amount    float64   `json:"amount"`
	Items     int       `json:"items,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
