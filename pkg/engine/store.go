package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides pebble-backed durability for the engine's arena: orders,
// trades, whitelist entries and admin state as JSON values under prefix
// keys. All writes for one engine call go through a single synced batch so
// the durable state never shows a half-applied call.
//
// Not thread-safe on its own; all access is serialized by the engine lock.
type Store struct {
	db *pebble.DB
}

// AdminState is the persisted owner-mutable configuration plus the
// accrued-fee tally.
type AdminState struct {
	FeeRateBps     int64                    `json:"feeRateBps"`
	FeeCollector   common.Address           `json:"feeCollector"`
	TradingEnabled bool                     `json:"tradingEnabled"`
	AccruedFees    map[common.Address]int64 `json:"accruedFees,omitempty"`
}

// Snapshot is everything Load reads back from disk. Per-account indices are
// deliberately absent: they are derived state and the engine rebuilds them
// from the arenas.
type Snapshot struct {
	Orders    map[uint64]*Order
	Trades    map[uint64]*Trade
	Whitelist map[common.Address]bool
	Admin     *AdminState
}

// OpenStore opens (or creates) a pebble database at path.
func OpenStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Commit writes the orders and trades touched by one engine call, plus the
// admin state, as a single synced batch.
func (s *Store) Commit(orders []*Order, trades []*Trade, admin AdminState) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, ord := range orders {
		data, err := json.Marshal(ord)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", ord.ID, err)
		}
		if err := b.Set(orderKey(ord.ID), data, nil); err != nil {
			return fmt.Errorf("batch order %d: %w", ord.ID, err)
		}
	}
	for _, t := range trades {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal trade %d: %w", t.ID, err)
		}
		if err := b.Set(tradeKey(t.ID), data, nil); err != nil {
			return fmt.Errorf("batch trade %d: %w", t.ID, err)
		}
	}
	data, err := json.Marshal(admin)
	if err != nil {
		return fmt.Errorf("marshal admin state: %w", err)
	}
	if err := b.Set(adminKey(), data, nil); err != nil {
		return fmt.Errorf("batch admin state: %w", err)
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// SaveAdmin persists the admin state alone.
func (s *Store) SaveAdmin(admin AdminState) error {
	data, err := json.Marshal(admin)
	if err != nil {
		return fmt.Errorf("marshal admin state: %w", err)
	}
	if err := s.db.Set(adminKey(), data, pebble.Sync); err != nil {
		return fmt.Errorf("save admin state: %w", err)
	}
	return nil
}

// PutWhitelist marks an asset eligible.
func (s *Store) PutWhitelist(asset common.Address) error {
	if err := s.db.Set(whitelistKey(asset), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("save whitelist entry %s: %w", asset.Hex(), err)
	}
	return nil
}

// DeleteWhitelist marks an asset ineligible.
func (s *Store) DeleteWhitelist(asset common.Address) error {
	if err := s.db.Delete(whitelistKey(asset), pebble.Sync); err != nil {
		return fmt.Errorf("delete whitelist entry %s: %w", asset.Hex(), err)
	}
	return nil
}

// Load reads the full persisted state.
func (s *Store) Load() (*Snapshot, error) {
	snap := &Snapshot{
		Orders:    make(map[uint64]*Order),
		Trades:    make(map[uint64]*Trade),
		Whitelist: make(map[common.Address]bool),
	}

	if err := s.scanJSON(prefixOrder, func(data []byte) error {
		var ord Order
		if err := json.Unmarshal(data, &ord); err != nil {
			return err
		}
		snap.Orders[ord.ID] = &ord
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	if err := s.scanJSON(prefixTrade, func(data []byte) error {
		var t Trade
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		snap.Trades[t.ID] = &t
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	prefix := []byte(prefixWhitelist)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("load whitelist: %w", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		hex := string(iter.Key()[len(prefix):])
		if !common.IsHexAddress(hex) {
			continue
		}
		snap.Whitelist[common.HexToAddress(hex)] = true
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("load whitelist: %w", err)
	}

	data, closer, err := s.db.Get(adminKey())
	switch err {
	case nil:
		var admin AdminState
		if err := json.Unmarshal(data, &admin); err != nil {
			closer.Close()
			return nil, fmt.Errorf("load admin state: %w", err)
		}
		closer.Close()
		snap.Admin = &admin
	case pebble.ErrNotFound:
		// First boot; the engine keeps its configured defaults.
	default:
		return nil, fmt.Errorf("load admin state: %w", err)
	}

	return snap, nil
}

func (s *Store) scanJSON(prefix string, each func(data []byte) error) error {
	lower := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound(lower),
	})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := each(iter.Value()); err != nil {
			iter.Close()
			return err
		}
	}
	return iter.Close()
}
