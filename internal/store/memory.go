package store

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// itemEntry guards the read-compare-write of one item's lowest bid.
type itemEntry struct {
	mu   sync.Mutex
	item model.Item
}

func (e *itemEntry) load() model.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item
}

// generation is the state of one auction cycle. The items map is only
// mutated while the store write lock is held.
type generation struct {
	id    uint64
	items map[string]*itemEntry

	usersMu sync.Mutex
	users   map[string]model.UserBids

	resultsMu sync.RWMutex
	results   map[string]model.Result
}

func newGeneration(id uint64) *generation {
	return &generation{
		id:      id,
		items:   make(map[string]*itemEntry),
		users:   make(map[string]model.UserBids),
		results: make(map[string]model.Result),
	}
}

func (g *generation) recordUserBid(userID, itemKey string, amount float64) {
	g.usersMu.Lock()
	defer g.usersMu.Unlock()

	record, exists := g.users[userID]
	if !exists {
		record = make(model.UserBids)
		g.users[userID] = record
	}
	record[itemKey] = amount
}

// MemoryStore implements Store with in-memory storage. A store-wide
// RWMutex orders resets against everything else, and each item carries
// its own mutex so bids on different items run in parallel.
type MemoryStore struct {
	mu  sync.RWMutex
	gen *generation
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gen: newGeneration(1),
	}
}

// Generation returns the current generation counter.
func (s *MemoryStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen.id
}

// Reset clears items, user records and results in one step.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := checkContext(ctx, "reset"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen = newGeneration(s.gen.id + 1)

	return nil
}

// ReplaceItems builds a new generation containing exactly the given items
// and swaps it in. Nothing changes if any price is invalid.
func (s *MemoryStore) ReplaceItems(
	ctx context.Context,
	startingBids map[string]float64,
) (map[string]model.Item, error) {
	if err := checkContext(ctx, "replace items"); err != nil {
		return nil, err
	}

	for key, price := range startingBids {
		if err := validateItem(key, price); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := newGeneration(s.gen.id + 1)
	snapshot := make(map[string]model.Item, len(startingBids))
	for key, price := range startingBids {
		item := model.Item{StartingBid: price}
		next.items[key] = &itemEntry{item: item}
		snapshot[key] = item
	}
	s.gen = next

	return snapshot, nil
}

// PutItem inserts or overwrites an item with no lowest bid.
func (s *MemoryStore) PutItem(ctx context.Context, key string, startingBid float64) error {
	if err := checkContext(ctx, "put item"); err != nil {
		return err
	}

	if err := validateItem(key, startingBid); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen.items[key] = &itemEntry{item: model.Item{StartingBid: startingBid}}

	return nil
}

// GetItem retrieves an item by its key.
func (s *MemoryStore) GetItem(ctx context.Context, key string) (*model.Item, error) {
	if err := checkContext(ctx, "get item"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.gen.items[key]
	if !exists {
		return nil, ErrNotFound
	}

	item := entry.load()
	return &item, nil
}

// ListItems returns a copy of every item together with the generation
// the copy was taken from.
func (s *MemoryStore) ListItems(ctx context.Context) (model.Snapshot, error) {
	if err := checkContext(ctx, "list items"); err != nil {
		return model.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make(map[string]model.Item, len(s.gen.items))
	for key, entry := range s.gen.items {
		items[key] = entry.load()
	}

	return model.Snapshot{Generation: s.gen.id, Items: items}, nil
}

// UpdateItem runs fn while holding the item's lock. A reset cannot happen
// until fn returns. Staged changes are discarded if fn returns an error.
func (s *MemoryStore) UpdateItem(
	ctx context.Context,
	key string,
	fn func(tx ItemTx) error,
) (*model.Item, error) {
	if err := checkContext(ctx, "update item"); err != nil {
		return nil, err
	}

	if fn == nil {
		return nil, fmt.Errorf("update item: %w", errNilItemCallback)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	gen := s.gen
	entry, exists := gen.items[key]
	if !exists {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	tx := &itemTx{key: key, original: entry.item, staged: entry.item}
	if err := fn(tx); err != nil {
		return nil, err
	}

	entry.item = tx.staged
	for _, b := range tx.userBids {
		gen.recordUserBid(b.Bidder, key, b.Amount)
	}

	item := entry.item
	return &item, nil
}

// RecordUserBid merges a bid into the bidder's record.
func (s *MemoryStore) RecordUserBid(ctx context.Context, userID, itemKey string, amount float64) error {
	if err := checkContext(ctx, "record user bid"); err != nil {
		return err
	}

	if err := model.ValidateBidder(userID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := model.ValidateItemKey(itemKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.gen.recordUserBid(userID, itemKey, amount)

	return nil
}

// GetUserBids returns a copy of the bidder's record.
func (s *MemoryStore) GetUserBids(ctx context.Context, userID string) (model.UserBids, error) {
	if err := checkContext(ctx, "get user bids"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.gen.usersMu.Lock()
	defer s.gen.usersMu.Unlock()

	record, exists := s.gen.users[userID]
	if !exists {
		return nil, ErrNotFound
	}

	return maps.Clone(record), nil
}

// SetResult records the winner of an item. It refuses to write into a
// generation other than the one the caller read the item from.
func (s *MemoryStore) SetResult(
	ctx context.Context,
	generation uint64,
	itemKey string,
	winner model.Bid,
) error {
	if err := checkContext(ctx, "set result"); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gen.id != generation {
		return ErrStaleGeneration
	}

	if _, exists := s.gen.items[itemKey]; !exists {
		return ErrNotFound
	}

	s.gen.resultsMu.Lock()
	defer s.gen.resultsMu.Unlock()

	s.gen.results[itemKey] = model.NewResult(winner)

	return nil
}

// ListResults returns a copy of all results.
func (s *MemoryStore) ListResults(ctx context.Context) (map[string]model.Result, error) {
	if err := checkContext(ctx, "list results"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.gen.resultsMu.RLock()
	defer s.gen.resultsMu.RUnlock()

	return maps.Clone(s.gen.results), nil
}

// itemTx stages changes to one item.
type itemTx struct {
	key      string
	original model.Item
	staged   model.Item
	userBids []model.Bid
}

func (tx *itemTx) Key() string { return tx.key }

func (tx *itemTx) Item() model.Item { return tx.original }

func (tx *itemTx) SetLowestBid(bid model.Bid) {
	tx.staged.LowestBid = model.SomeBid(bid)
}

func (tx *itemTx) RecordUserBid(userID string, amount float64) {
	tx.userBids = append(tx.userBids, model.Bid{Bidder: userID, Amount: amount})
}

// validateItem checks a catalog entry.
func validateItem(key string, startingBid float64) error {
	if err := model.ValidateItemKey(key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := model.ValidateAmount(startingBid); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, key, errNegativeStartBid)
	}
	return nil
}

// checkContext returns an error if ctx is already done.
func checkContext(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", operation, ctx.Err())
	default:
		return nil
	}
}

var _ Store = (*MemoryStore)(nil)
