// Package engine implements the order-matching and trade-settlement core
// for tokenized-asset trading: order intake, first-compatible-match scans,
// atomic settlement through an external token ledger, an append-only trade
// log, and the owner-gated admin surface.
//
// Every state-mutating operation runs to completion under a single lock —
// including all matching and settlement triggered transitively by one
// submit — before any other operation is observed. If any step fails the
// whole call reverts with no partial effect.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/kyuho-lee/tokendex/pkg/token"
	"github.com/kyuho-lee/tokendex/pkg/util"
)

// MaxFeeRateBps caps the configurable fee rate at 1%.
const MaxFeeRateBps = 100

const feeDenominator = 10000

// Config holds the engine's identity and initial admin settings. When a
// Store already contains persisted admin state, that state wins over the
// initial values here.
type Config struct {
	// Owner may call the admin surface.
	Owner common.Address
	// Exchange is the engine's own account: the spender makers must have
	// approved on the token ledger before selling.
	Exchange common.Address
	// FeeCollector receives routed fees. Must be non-zero.
	FeeCollector common.Address
	// FeeRateBps is the trade fee in basis points, 0..100.
	FeeRateBps int64
	// TradingEnabled gates all order submission.
	TradingEnabled bool
}

func (c Config) validate() error {
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("engine: owner address must be set")
	}
	if c.Exchange == (common.Address{}) {
		return fmt.Errorf("engine: exchange address must be set")
	}
	if c.FeeCollector == (common.Address{}) {
		return ErrInvalidFeeCollector
	}
	if c.FeeRateBps < 0 || c.FeeRateBps > MaxFeeRateBps {
		return ErrFeeTooHigh
	}
	return nil
}

// Engine owns all order, trade and whitelist records. The arena maps keyed
// by integer id are the source of truth; the per-account id slices are
// derived indices, rebuilt from the arena on startup.
type Engine struct {
	mu   sync.Mutex
	busy bool // non-reentrant gate around the whole mutating surface

	log    *zap.Logger
	clock  util.Clock
	ledger token.Ledger
	store  *Store // optional durability; nil in unit tests
	sink   EventSink
	fees   FeePolicy

	owner          common.Address
	exchange       common.Address
	feeCollector   common.Address
	feeRateBps     int64
	tradingEnabled bool

	lastOrderID uint64
	lastTradeID uint64

	orders    map[uint64]*Order
	trades    map[uint64]*Trade
	whitelist map[common.Address]bool

	buyOrders  map[common.Address][]uint64 // maker -> buy order ids
	sellOrders map[common.Address][]uint64 // maker -> sell order ids
	userTrades map[common.Address][]uint64 // participant -> trade ids

	accrued map[common.Address]int64 // asset -> computed fees to date
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock sets the time source used for order and trade timestamps.
func WithClock(c util.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithStore attaches pebble-backed durability. Persisted orders, trades,
// whitelist entries and admin state are loaded and the per-account indices
// rebuilt before New returns.
func WithStore(s *Store) Option { return func(e *Engine) { e.store = s } }

// WithSink sets the destination for committed events.
func WithSink(s EventSink) Option { return func(e *Engine) { e.sink = s } }

// WithFeePolicy overrides fee routing. Default is AccrueOnly.
func WithFeePolicy(p FeePolicy) Option { return func(e *Engine) { e.fees = p } }

// New creates an engine settling through ledger.
func New(cfg Config, ledger token.Ledger, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, fmt.Errorf("engine: ledger is required")
	}

	e := &Engine{
		log:            zap.NewNop(),
		clock:          util.RealClock{},
		ledger:         ledger,
		fees:           AccrueOnly{},
		owner:          cfg.Owner,
		exchange:       cfg.Exchange,
		feeCollector:   cfg.FeeCollector,
		feeRateBps:     cfg.FeeRateBps,
		tradingEnabled: cfg.TradingEnabled,
		orders:         make(map[uint64]*Order),
		trades:         make(map[uint64]*Trade),
		whitelist:      make(map[common.Address]bool),
		buyOrders:      make(map[common.Address][]uint64),
		sellOrders:     make(map[common.Address][]uint64),
		userTrades:     make(map[common.Address][]uint64),
		accrued:        make(map[common.Address]int64),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store != nil {
		if err := e.restore(); err != nil {
			return nil, fmt.Errorf("engine: restore: %w", err)
		}
	}
	return e, nil
}

// restore loads persisted state and rebuilds the derived indices from the
// order/trade arenas.
func (e *Engine) restore() error {
	snap, err := e.store.Load()
	if err != nil {
		return err
	}

	e.orders = snap.Orders
	e.trades = snap.Trades
	e.whitelist = snap.Whitelist
	if snap.Admin != nil {
		e.feeRateBps = snap.Admin.FeeRateBps
		e.feeCollector = snap.Admin.FeeCollector
		e.tradingEnabled = snap.Admin.TradingEnabled
		if snap.Admin.AccruedFees != nil {
			e.accrued = snap.Admin.AccruedFees
		}
	}

	// Ids are never reused and records are never deleted, so the highest
	// persisted id is the counter.
	for id := range e.orders {
		if id > e.lastOrderID {
			e.lastOrderID = id
		}
	}
	for id := range e.trades {
		if id > e.lastTradeID {
			e.lastTradeID = id
		}
	}

	// Rebuild per-account indices in id order.
	for id := uint64(1); id <= e.lastOrderID; id++ {
		o, ok := e.orders[id]
		if !ok {
			continue
		}
		if o.Side == Buy {
			e.buyOrders[o.Maker] = append(e.buyOrders[o.Maker], id)
		} else {
			e.sellOrders[o.Maker] = append(e.sellOrders[o.Maker], id)
		}
	}
	for id := uint64(1); id <= e.lastTradeID; id++ {
		t, ok := e.trades[id]
		if !ok {
			continue
		}
		e.userTrades[t.Buyer] = append(e.userTrades[t.Buyer], id)
		if t.Seller != t.Buyer {
			e.userTrades[t.Seller] = append(e.userTrades[t.Seller], id)
		}
	}

	e.log.Info("state_restored",
		zap.Uint64("orders", e.lastOrderID),
		zap.Uint64("trades", e.lastTradeID),
		zap.Int("whitelisted", len(e.whitelist)))
	return nil
}

// enter sets the reentrancy gate; it assumes e.mu is held.
func (e *Engine) enter() error {
	if e.busy {
		return ErrReentrantCall
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

// CreateOrder validates, stores and immediately matches a new order,
// returning its assigned id. The whole call — validation, storage, every
// settlement it triggers, durability — commits or reverts as one unit.
func (e *Engine) CreateOrder(ctx context.Context, maker, asset common.Address, amount, price int64, side Side) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()

	if !side.Valid() {
		return 0, fmt.Errorf("engine: invalid side %d", side)
	}
	if !e.tradingEnabled {
		return 0, ErrTradingDisabled
	}
	if !e.whitelist[asset] {
		return 0, ErrAssetNotWhitelisted
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	if side == Sell {
		// Sellers must be able to deliver: balance and exchange allowance
		// are checked up front. Buy-side quote solvency is the maker's
		// problem at settlement time.
		bal, err := e.ledger.BalanceOf(ctx, asset, maker)
		if err != nil {
			return 0, fmt.Errorf("engine: balance query: %w", err)
		}
		if bal < amount {
			return 0, ErrInsufficientBalance
		}
		allowed, err := e.ledger.Allowance(ctx, asset, maker, e.exchange)
		if err != nil {
			return 0, fmt.Errorf("engine: allowance query: %w", err)
		}
		if allowed < amount {
			return 0, ErrInsufficientAllowance
		}
	}

	tx := e.begin()

	ord := &Order{
		ID:         e.lastOrderID + 1,
		Maker:      maker,
		Asset:      asset,
		Amount:     amount,
		LimitPrice: price,
		Side:       side,
		CreatedAt:  e.clock.Now().UnixMilli(),
		Active:     true,
	}
	e.addOrder(tx, ord)
	tx.emit(Event{Type: EventOrderCreated, Time: ord.CreatedAt, Order: copyOrder(ord)})

	if err := e.match(ctx, tx, ord); err != nil {
		e.rollback(tx)
		return 0, err
	}
	if err := e.commit(tx); err != nil {
		e.rollback(tx)
		return 0, err
	}

	e.log.Info("order_created",
		zap.Uint64("id", ord.ID),
		zap.String("maker", maker.Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("side", side.String()),
		zap.Int64("amount", amount),
		zap.Int64("price", price),
		zap.Bool("open", ord.Active))
	return ord.ID, nil
}

// CancelOrder deactivates an active order. Only the maker may cancel.
// Nothing is escrowed at submission, so there is nothing to refund.
func (e *Engine) CancelOrder(ctx context.Context, caller common.Address, orderID uint64) error {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	ord, ok := e.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if ord.Maker != caller {
		return ErrNotOrderMaker
	}
	if !ord.Active {
		return ErrOrderNotActive
	}

	tx := e.begin()
	e.deactivate(tx, ord)
	tx.emit(Event{Type: EventOrderCancelled, Time: e.clock.Now().UnixMilli(), Order: copyOrder(ord)})
	if err := e.commit(tx); err != nil {
		e.rollback(tx)
		return err
	}

	e.log.Info("order_cancelled", zap.Uint64("id", orderID), zap.String("maker", caller.Hex()))
	return nil
}

// addOrder assigns the new id, stores the order and appends it to the
// maker's per-side index, all journaled.
func (e *Engine) addOrder(tx *txn, ord *Order) {
	prev := e.lastOrderID
	tx.record(func() { e.lastOrderID = prev })
	e.lastOrderID = ord.ID

	e.orders[ord.ID] = ord
	tx.record(func() { delete(e.orders, ord.ID) })
	tx.touch(ord)

	index := e.buyOrders
	if ord.Side == Sell {
		index = e.sellOrders
	}
	maker := ord.Maker
	n := len(index[maker])
	tx.record(func() { index[maker] = index[maker][:n] })
	index[maker] = append(index[maker], ord.ID)
}

// deactivate flips Active to false, journaled. Amount is left untouched.
func (e *Engine) deactivate(tx *txn, ord *Order) {
	wasActive := ord.Active
	tx.record(func() { ord.Active = wasActive })
	ord.Active = false
	tx.touch(ord)
}

func copyOrder(o *Order) *Order {
	c := *o
	return &c
}
