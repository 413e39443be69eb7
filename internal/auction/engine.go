// Package auction implements reverse-auction bid resolution on top of a
// store.Store. The lowest bid at or above an item's starting price wins;
// ties go to the first bidder.
package auction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
	"github.com/vyrodovalexey/reverse-auction/internal/store"
)

// Engine validates and applies bids and materializes results.
type Engine struct {
	store    store.Store
	logger   *zap.Logger
	notifier Notifier
	metrics  *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the receiver of auction events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMetrics sets the Prometheus collectors the engine reports to.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine backed by s.
func NewEngine(s store.Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartAuction discards all previous state and registers a new catalog.
func (e *Engine) StartAuction(ctx context.Context, itemPrices map[string]float64) (map[string]model.Item, error) {
	if len(itemPrices) == 0 {
		return nil, fmt.Errorf("%w: item list is empty", ErrInvalidArgument)
	}

	for key, price := range itemPrices {
		if err := model.ValidateItemKey(key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if err := model.ValidateAmount(price); err != nil {
			return nil, fmt.Errorf("%w: starting bid of %q: %w", ErrInvalidArgument, key, err)
		}
	}

	items, err := e.store.ReplaceItems(ctx, itemPrices)
	if err != nil {
		if errors.Is(err, store.ErrInvalidArgument) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return nil, fmt.Errorf("start auction: %w", err)
	}

	e.metrics.observeStart(len(items))
	e.logger.Info("auction started", zap.Int("items", len(items)))

	event := newEvent(model.EventAuctionStarted)
	event.Items = len(items)
	e.publish(event)

	return items, nil
}

// PlaceBid validates a bid and applies it. The starting-bid check, the
// user record update and the lowest-bid compare-and-swap happen as one
// step per item.
func (e *Engine) PlaceBid(ctx context.Context, userID, itemKey string, amount float64) (model.Confirmation, error) {
	if err := validateBid(userID, itemKey, amount); err != nil {
		e.metrics.observeBid(outcomeInvalid)
		return nil, err
	}

	var lowestChanged bool
	_, err := e.store.UpdateItem(ctx, itemKey, func(tx store.ItemTx) error {
		item := tx.Item()
		if !meetsStartingBid(amount, item.StartingBid) {
			return fmt.Errorf("%w: %v is below starting bid %v of %q",
				ErrInvalidBid, amount, item.StartingBid, itemKey)
		}

		tx.RecordUserBid(userID, amount)

		lowest, ok := item.LowestBid.Get()
		if !ok || undercuts(amount, lowest.Amount) {
			tx.SetLowestBid(model.Bid{Bidder: userID, Amount: amount})
			lowestChanged = true
		}
		return nil
	})
	if err != nil {
		return nil, e.classifyBidError(err, itemKey)
	}

	e.metrics.observeBid(outcomeAccepted)
	e.logger.Debug("bid accepted",
		zap.String("user_id", userID),
		zap.String("item", itemKey),
		zap.Float64("amount", amount),
		zap.Bool("lowest", lowestChanged),
	)

	accepted := newEvent(model.EventBidAccepted)
	accepted.Item, accepted.Bidder, accepted.Amount = itemKey, userID, amount
	e.publish(accepted)

	if lowestChanged {
		e.metrics.observeLowestBidChange()
		changed := newEvent(model.EventLowestBidChanged)
		changed.Item, changed.Bidder, changed.Amount = itemKey, userID, amount
		e.publish(changed)
	}

	return model.NewConfirmation(userID, itemKey, amount), nil
}

// classifyBidError maps store and validation failures to engine errors.
func (e *Engine) classifyBidError(err error, itemKey string) error {
	switch {
	case errors.Is(err, ErrInvalidBid):
		e.metrics.observeBid(outcomeTooLow)
		return err
	case errors.Is(err, store.ErrNotFound):
		e.metrics.observeBid(outcomeItemNotFound)
		return fmt.Errorf("%w: %q", ErrItemNotFound, itemKey)
	default:
		return fmt.Errorf("place bid: %w", err)
	}
}

// GetUserBids returns every item the user has bid on with their last amount.
func (e *Engine) GetUserBids(ctx context.Context, userID string) (model.UserBids, error) {
	bids, err := e.store.GetUserBids(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("get user bids: %w", err)
	}
	return bids, nil
}

// ResolveResults writes the current lowest bid of every item that has one
// into the results and returns them. Items without bids get no result.
// A reset that lands mid-pass restarts the pass on the new generation.
// The returned results are the ones this pass wrote, even if a reset
// follows right after.
func (e *Engine) ResolveResults(ctx context.Context) (map[string]model.Result, error) {
	var results map[string]model.Result
	for {
		snap, err := e.store.ListItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve results: %w", err)
		}

		results, err = e.writeResults(ctx, snap)
		if errors.Is(err, store.ErrStaleGeneration) {
			e.logger.Debug("auction reset during resolution, retrying",
				zap.Uint64("generation", snap.Generation),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve results: %w", err)
		}
		break
	}

	e.metrics.observeResolution()
	e.logger.Info("results resolved", zap.Int("results", len(results)))

	event := newEvent(model.EventResultsResolved)
	event.Items = len(results)
	e.publish(event)

	return results, nil
}

func (e *Engine) writeResults(ctx context.Context, snap model.Snapshot) (map[string]model.Result, error) {
	results := make(map[string]model.Result, len(snap.Items))
	for key, item := range snap.Items {
		winner, ok := item.LowestBid.Get()
		if !ok {
			continue
		}
		if err := e.store.SetResult(ctx, snap.Generation, key, winner); err != nil {
			return nil, err
		}
		results[key] = model.NewResult(winner)
	}
	return results, nil
}

// GetResults returns the resolved results without resolving again.
func (e *Engine) GetResults(ctx context.Context) (map[string]model.Result, error) {
	results, err := e.store.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrResultsNotReady
	}
	return results, nil
}

// Items returns the current item catalog with running lowest bids.
func (e *Engine) Items(ctx context.Context) (map[string]model.Item, error) {
	snap, err := e.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return snap.Items, nil
}

func (e *Engine) publish(event model.Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(event)
}

func validateBid(userID, itemKey string, amount float64) error {
	if err := model.ValidateBidder(userID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := model.ValidateItemKey(itemKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	// Negative amounts fall through to the starting-bid check.
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, model.ErrNonFiniteAmount)
	}
	return nil
}
