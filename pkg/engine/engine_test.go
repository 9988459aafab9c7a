package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyuho-lee/tokendex/pkg/token"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	exchange  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	collector = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000022")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000000033")
	asset     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	asset2    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time                       { return c.t }
func (c *fakeClock) After(time.Duration) <-chan time.Time { return nil }
func (c *fakeClock) advance(d time.Duration)              { c.t = c.t.Add(d) }

type recordingSink struct{ events []Event }

func (s *recordingSink) Publish(ev Event) { s.events = append(s.events, ev) }

func defaultConfig() Config {
	return Config{
		Owner:          owner,
		Exchange:       exchange,
		FeeCollector:   collector,
		FeeRateBps:     0,
		TradingEnabled: true,
	}
}

// newTestEngine wires an engine to a fresh bank with the asset whitelisted.
func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *token.Bank) {
	t.Helper()
	bank := token.NewBank(exchange)
	eng, err := New(cfg, bank, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	return eng, bank
}

// fund mints and approves so the account can sell up to amount.
func fund(t *testing.T, bank *token.Bank, account common.Address, amount int64) {
	t.Helper()
	if err := bank.Mint(asset, account, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Approve(asset, account, exchange, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func mustCreate(t *testing.T, eng *Engine, maker common.Address, amount, price int64, side Side) uint64 {
	t.Helper()
	id, err := eng.CreateOrder(context.Background(), maker, asset, amount, price, side)
	if err != nil {
		t.Fatalf("CreateOrder(%s %d@%d): %v", side, amount, price, err)
	}
	return id
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(*Engine, *token.Bank)
		maker   common.Address
		asset   common.Address
		amount  int64
		price   int64
		side    Side
		wantErr error
	}{
		{
			name: "trading disabled",
			setup: func(e *Engine, _ *token.Bank) {
				_ = e.SetTradingEnabled(owner, false)
			},
			maker: alice, asset: asset, amount: 10, price: 5, side: Buy,
			wantErr: ErrTradingDisabled,
		},
		{
			name:  "asset not whitelisted",
			maker: alice, asset: asset2, amount: 10, price: 5, side: Buy,
			wantErr: ErrAssetNotWhitelisted,
		},
		{
			name:  "zero amount",
			maker: alice, asset: asset, amount: 0, price: 5, side: Buy,
			wantErr: ErrInvalidAmount,
		},
		{
			name:  "negative amount",
			maker: alice, asset: asset, amount: -1, price: 5, side: Sell,
			wantErr: ErrInvalidAmount,
		},
		{
			name:  "zero price",
			maker: alice, asset: asset, amount: 10, price: 0, side: Buy,
			wantErr: ErrInvalidPrice,
		},
		{
			name:  "seller without balance",
			maker: bob, asset: asset, amount: 10, price: 5, side: Sell,
			wantErr: ErrInsufficientBalance,
		},
		{
			name: "seller without allowance",
			setup: func(_ *Engine, b *token.Bank) {
				_ = b.Mint(asset, bob, 100)
			},
			maker: bob, asset: asset, amount: 10, price: 5, side: Sell,
			wantErr: ErrInsufficientAllowance,
		},
		{
			name:  "buyer is never balance-checked",
			maker: alice, asset: asset, amount: 1_000_000, price: 999, side: Buy,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, bank := newTestEngine(t, defaultConfig())
			if tt.setup != nil {
				tt.setup(eng, bank)
			}
			_, err := eng.CreateOrder(ctx, tt.maker, tt.asset, tt.amount, tt.price, tt.side)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationOrderTradingGateFirst(t *testing.T) {
	// A disabled engine reports the gate before any other problem with
	// the request.
	eng, _ := newTestEngine(t, defaultConfig())
	if err := eng.SetTradingEnabled(owner, false); err != nil {
		t.Fatal(err)
	}
	_, err := eng.CreateOrder(context.Background(), alice, asset2, -5, 0, Buy)
	if !errors.Is(err, ErrTradingDisabled) {
		t.Fatalf("got %v, want ErrTradingDisabled", err)
	}
}

func TestFullMatch(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)

	sellID := mustCreate(t, eng, bob, 100, 10, Sell)
	buyID := mustCreate(t, eng, alice, 100, 12, Buy)

	trade, ok := eng.Trade(1)
	if !ok {
		t.Fatal("expected a trade")
	}
	if trade.BuyOrderID != buyID || trade.SellOrderID != sellID {
		t.Fatalf("trade pairs %d/%d, want %d/%d", trade.BuyOrderID, trade.SellOrderID, buyID, sellID)
	}
	if trade.Amount != 100 {
		t.Fatalf("trade amount %d, want 100", trade.Amount)
	}
	// Execution always happens at the sell-side limit.
	if trade.Price != 10 {
		t.Fatalf("trade price %d, want 10", trade.Price)
	}

	for _, id := range []uint64{buyID, sellID} {
		ord, _ := eng.Order(id)
		if ord.Active || ord.Amount != 0 {
			t.Fatalf("order %d: active=%v amount=%d, want filled", id, ord.Active, ord.Amount)
		}
	}

	bal, _ := bank.BalanceOf(context.Background(), asset, alice)
	if bal != 100 {
		t.Fatalf("buyer balance %d, want 100", bal)
	}
	bal, _ = bank.BalanceOf(context.Background(), asset, bob)
	if bal != 0 {
		t.Fatalf("seller balance %d, want 0", bal)
	}
}

func TestPartialFill(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 40)

	mustCreate(t, eng, bob, 40, 10, Sell)
	buyID := mustCreate(t, eng, alice, 100, 10, Buy)

	buy, _ := eng.Order(buyID)
	if !buy.Active || buy.Amount != 60 {
		t.Fatalf("buy active=%v amount=%d, want active with 60 left", buy.Active, buy.Amount)
	}
	trade, _ := eng.Trade(1)
	if trade.Amount != 40 {
		t.Fatalf("trade amount %d, want 40", trade.Amount)
	}
}

func TestNoCrossNoTrade(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)

	sellID := mustCreate(t, eng, bob, 100, 10, Sell)
	buyID := mustCreate(t, eng, alice, 100, 9, Buy)

	if _, ok := eng.Trade(1); ok {
		t.Fatal("no trade expected when prices do not cross")
	}
	for _, id := range []uint64{sellID, buyID} {
		ord, _ := eng.Order(id)
		if !ord.Active {
			t.Fatalf("order %d should stay active", id)
		}
	}
}

func TestTriggerSellPricesTheTrade(t *testing.T) {
	// A sell submitted into a resting higher buy executes at the sell's
	// own limit, not the buy's.
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 50)

	mustCreate(t, eng, alice, 50, 20, Buy)
	mustCreate(t, eng, bob, 50, 15, Sell)

	trade, ok := eng.Trade(1)
	if !ok {
		t.Fatal("expected a trade")
	}
	if trade.Price != 15 {
		t.Fatalf("trade price %d, want 15", trade.Price)
	}
}

func TestMatchesFirstCompatibleByID(t *testing.T) {
	// Matching scans order ids from 1, not best price first. The earlier,
	// worse-priced sell wins over the later, cheaper one.
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)
	fund(t, bank, carol, 100)

	firstSell := mustCreate(t, eng, bob, 100, 10, Sell)
	mustCreate(t, eng, carol, 100, 5, Sell)
	mustCreate(t, eng, alice, 100, 10, Buy)

	trade, ok := eng.Trade(1)
	if !ok {
		t.Fatal("expected a trade")
	}
	if trade.SellOrderID != firstSell {
		t.Fatalf("matched sell %d, want the earlier order %d", trade.SellOrderID, firstSell)
	}
	if trade.Price != 10 {
		t.Fatalf("trade price %d, want 10", trade.Price)
	}
}

func TestMultiMatchAcrossRestingOrders(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)
	fund(t, bank, carol, 100)

	mustCreate(t, eng, bob, 100, 10, Sell)
	secondSell := mustCreate(t, eng, carol, 100, 10, Sell)
	buyID := mustCreate(t, eng, alice, 150, 10, Buy)

	t1, _ := eng.Trade(1)
	t2, ok := eng.Trade(2)
	if !ok {
		t.Fatal("expected two trades")
	}
	if t1.Amount != 100 || t2.Amount != 50 {
		t.Fatalf("trade amounts %d/%d, want 100/50", t1.Amount, t2.Amount)
	}

	buy, _ := eng.Order(buyID)
	if buy.Active || buy.Amount != 0 {
		t.Fatalf("buy should be fully filled, got active=%v amount=%d", buy.Active, buy.Amount)
	}
	sell2, _ := eng.Order(secondSell)
	if !sell2.Active || sell2.Amount != 50 {
		t.Fatalf("second sell active=%v amount=%d, want active with 50 left", sell2.Active, sell2.Amount)
	}
}

func TestFeeComputation(t *testing.T) {
	tests := []struct {
		name    string
		bps     int64
		amount  int64
		price   int64
		wantFee int64
	}{
		{"one percent", 100, 100, 10, 10},
		{"fractional floors to zero", 25, 3, 3, 0},
		{"zero rate", 0, 100, 10, 0},
		{"rounds down", 30, 7, 11, 0}, // 7*11*30/10000 = 0.231
		{"large notional", 50, 1000, 200, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.FeeRateBps = tt.bps
			eng, bank := newTestEngine(t, cfg)
			fund(t, bank, bob, tt.amount)

			mustCreate(t, eng, bob, tt.amount, tt.price, Sell)
			mustCreate(t, eng, alice, tt.amount, tt.price, Buy)

			trade, ok := eng.Trade(1)
			if !ok {
				t.Fatal("expected a trade")
			}
			if trade.Fee != tt.wantFee {
				t.Fatalf("fee %d, want %d", trade.Fee, tt.wantFee)
			}
			if got := eng.AccruedFees(asset); got != tt.wantFee {
				t.Fatalf("accrued %d, want %d", got, tt.wantFee)
			}
		})
	}
}

func TestAccrueOnlyMovesNoTokens(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeeRateBps = 100
	eng, bank := newTestEngine(t, cfg)
	fund(t, bank, bob, 100)

	mustCreate(t, eng, bob, 100, 10, Sell)
	mustCreate(t, eng, alice, 100, 10, Buy)

	bal, _ := bank.BalanceOf(context.Background(), asset, collector)
	if bal != 0 {
		t.Fatalf("collector balance %d, want 0 under AccrueOnly", bal)
	}
	if eng.AccruedFees(asset) != 10 {
		t.Fatalf("accrued %d, want 10", eng.AccruedFees(asset))
	}
}

func TestCollectorTransferRoutesFee(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeeRateBps = 100
	bank := token.NewBank(exchange)
	eng, err := New(cfg, bank, WithFeePolicy(CollectorTransfer{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatal(err)
	}
	fund(t, bank, bob, 100)
	// The buyer pays the fee out of the received tokens; the exchange
	// needs an allowance to move them.
	if err := bank.Approve(asset, alice, exchange, 1000); err != nil {
		t.Fatal(err)
	}

	mustCreate(t, eng, bob, 100, 10, Sell)
	mustCreate(t, eng, alice, 100, 10, Buy)

	got, _ := bank.BalanceOf(context.Background(), asset, collector)
	if got != 10 {
		t.Fatalf("collector balance %d, want 10", got)
	}
	got, _ = bank.BalanceOf(context.Background(), asset, alice)
	if got != 90 {
		t.Fatalf("buyer balance %d, want 90", got)
	}
}

func TestCancelOrder(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)
	ctx := context.Background()

	id := mustCreate(t, eng, bob, 100, 10, Sell)

	if err := eng.CancelOrder(ctx, alice, id); !errors.Is(err, ErrNotOrderMaker) {
		t.Fatalf("foreign cancel: got %v, want ErrNotOrderMaker", err)
	}
	if err := eng.CancelOrder(ctx, bob, 999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown id: got %v, want ErrOrderNotFound", err)
	}
	if err := eng.CancelOrder(ctx, bob, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := eng.CancelOrder(ctx, bob, id); !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("double cancel: got %v, want ErrOrderNotActive", err)
	}

	ord, _ := eng.Order(id)
	if ord.Active {
		t.Fatal("cancelled order still active")
	}
	// Amount is preserved for the record; only Active flips.
	if ord.Amount != 100 {
		t.Fatalf("cancelled order amount %d, want 100", ord.Amount)
	}

	// A crossing buy no longer finds it.
	mustCreate(t, eng, alice, 100, 10, Buy)
	if _, ok := eng.Trade(1); ok {
		t.Fatal("cancelled order must not match")
	}
}

func TestCancelFilledOrder(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)

	sellID := mustCreate(t, eng, bob, 100, 10, Sell)
	mustCreate(t, eng, alice, 100, 10, Buy)

	err := eng.CancelOrder(context.Background(), bob, sellID)
	if !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("got %v, want ErrOrderNotActive", err)
	}
}

// failingLedger wraps a bank and starts refusing transfers after a set
// number of successes, while still delegating snapshot handling.
type failingLedger struct {
	*token.Bank
	remaining int
}

func (f *failingLedger) TransferFrom(ctx context.Context, asset, from, to common.Address, amount int64) error {
	if f.remaining <= 0 {
		return errors.New("ledger offline")
	}
	f.remaining--
	return f.Bank.TransferFrom(ctx, asset, from, to, amount)
}

func TestFailedSettlementRevertsWholeSubmit(t *testing.T) {
	bank := token.NewBank(exchange)
	ledger := &failingLedger{Bank: bank, remaining: 1}
	eng, err := New(defaultConfig(), ledger)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatal(err)
	}
	fund(t, bank, bob, 100)
	fund(t, bank, carol, 100)

	mustCreate(t, eng, bob, 100, 10, Sell)
	mustCreate(t, eng, carol, 100, 10, Sell)

	// The buy matches bob's sell (transfer succeeds), then carol's
	// (transfer fails). Everything including the first settlement and the
	// buy order itself must unwind.
	_, err = eng.CreateOrder(context.Background(), alice, asset, 150, 10, Buy)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	if _, ok := eng.Order(3); ok {
		t.Fatal("failed submit left its order behind")
	}
	if _, ok := eng.Trade(1); ok {
		t.Fatal("failed submit left a trade behind")
	}
	for _, maker := range []common.Address{bob, carol} {
		bal, _ := bank.BalanceOf(context.Background(), asset, maker)
		if bal != 100 {
			t.Fatalf("%s balance %d, want 100 after revert", maker.Hex(), bal)
		}
	}
	bal, _ := bank.BalanceOf(context.Background(), asset, alice)
	if bal != 0 {
		t.Fatalf("buyer balance %d, want 0 after revert", bal)
	}

	// Ids from reverted calls are not burned.
	ledger.remaining = 2
	id := mustCreate(t, eng, alice, 150, 10, Buy)
	if id != 3 {
		t.Fatalf("next order id %d, want 3", id)
	}
}

func TestEventsPublishedOnlyOnCommit(t *testing.T) {
	sink := &recordingSink{}
	bank := token.NewBank(exchange)
	ledger := &failingLedger{Bank: bank, remaining: 0}
	eng, err := New(defaultConfig(), ledger, WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatal(err)
	}
	fund(t, bank, bob, 100)
	sink.events = nil

	mustCreate(t, eng, bob, 100, 10, Sell)
	if len(sink.events) != 1 || sink.events[0].Type != EventOrderCreated {
		t.Fatalf("got %d events, want single order_created", len(sink.events))
	}

	sink.events = nil
	if _, err := eng.CreateOrder(context.Background(), alice, asset, 100, 10, Buy); err == nil {
		t.Fatal("expected settlement failure")
	}
	if len(sink.events) != 0 {
		t.Fatalf("failed call published %d events", len(sink.events))
	}

	ledger.remaining = 1
	sink.events = nil
	mustCreate(t, eng, alice, 100, 10, Buy)

	want := []EventType{EventOrderCreated, EventTradeExecuted, EventOrderFilled, EventOrderFilled}
	if len(sink.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(sink.events), len(want))
	}
	for i, ev := range sink.events {
		if ev.Type != want[i] {
			t.Fatalf("event %d is %s, want %s", i, ev.Type, want[i])
		}
	}
}

func TestAdminAuthorization(t *testing.T) {
	eng, _ := newTestEngine(t, defaultConfig())

	tests := []struct {
		name string
		call func() error
	}{
		{"whitelist", func() error { return eng.WhitelistToken(alice, asset2) }},
		{"remove whitelist", func() error { return eng.RemoveFromWhitelist(alice, asset) }},
		{"trading", func() error { return eng.SetTradingEnabled(alice, false) }},
		{"fee rate", func() error { return eng.SetFeeRate(alice, 10) }},
		{"fee collector", func() error { return eng.SetFeeCollector(alice, bob) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNotOwner) {
				t.Fatalf("got %v, want ErrNotOwner", err)
			}
		})
	}
}

func TestAdminBounds(t *testing.T) {
	eng, _ := newTestEngine(t, defaultConfig())

	if err := eng.SetFeeRate(owner, MaxFeeRateBps+1); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("got %v, want ErrFeeTooHigh", err)
	}
	if err := eng.SetFeeRate(owner, -1); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("got %v, want ErrFeeTooHigh", err)
	}
	if err := eng.SetFeeRate(owner, MaxFeeRateBps); err != nil {
		t.Fatalf("max rate rejected: %v", err)
	}
	if err := eng.SetFeeCollector(owner, common.Address{}); !errors.Is(err, ErrInvalidFeeCollector) {
		t.Fatalf("got %v, want ErrInvalidFeeCollector", err)
	}

	if err := eng.WhitelistToken(owner, asset); !errors.Is(err, ErrAlreadyWhitelisted) {
		t.Fatalf("got %v, want ErrAlreadyWhitelisted", err)
	}
	if err := eng.RemoveFromWhitelist(owner, asset2); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("got %v, want ErrNotWhitelisted", err)
	}
}

func TestDeWhitelistedAssetKeepsOrders(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 100)

	sellID := mustCreate(t, eng, bob, 100, 10, Sell)
	if err := eng.RemoveFromWhitelist(owner, asset); err != nil {
		t.Fatal(err)
	}

	// New submissions are blocked while the resting order stays live.
	_, err := eng.CreateOrder(context.Background(), alice, asset, 100, 10, Buy)
	if !errors.Is(err, ErrAssetNotWhitelisted) {
		t.Fatalf("got %v, want ErrAssetNotWhitelisted", err)
	}
	ord, _ := eng.Order(sellID)
	if !ord.Active {
		t.Fatal("resting order deactivated by de-whitelisting")
	}

	// Re-listing makes it immediately matchable again.
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatal(err)
	}
	mustCreate(t, eng, alice, 100, 10, Buy)
	if _, ok := eng.Trade(1); !ok {
		t.Fatal("resting order should match after re-whitelisting")
	}
}

func TestUserIndices(t *testing.T) {
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, bob, 200)

	s1 := mustCreate(t, eng, bob, 100, 10, Sell)
	b1 := mustCreate(t, eng, alice, 50, 10, Buy)
	s2 := mustCreate(t, eng, bob, 100, 20, Sell)

	if got := eng.UserSellOrders(bob); len(got) != 2 || got[0] != s1 || got[1] != s2 {
		t.Fatalf("bob sells %v, want [%d %d]", got, s1, s2)
	}
	if got := eng.UserBuyOrders(alice); len(got) != 1 || got[0] != b1 {
		t.Fatalf("alice buys %v, want [%d]", got, b1)
	}
	if got := eng.UserTrades(alice); len(got) != 1 || got[0] != 1 {
		t.Fatalf("alice trades %v, want [1]", got)
	}
	if got := eng.UserTrades(bob); len(got) != 1 || got[0] != 1 {
		t.Fatalf("bob trades %v, want [1]", got)
	}
	if got := eng.UserTrades(carol); len(got) != 0 {
		t.Fatalf("carol trades %v, want empty", got)
	}
}

func TestActiveOrdersPagination(t *testing.T) {
	eng, _ := newTestEngine(t, defaultConfig())

	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, mustCreate(t, eng, alice, 10, int64(i+1), Buy))
	}
	// Cancel the middle one; pagination skips it.
	if err := eng.CancelOrder(context.Background(), alice, ids[2]); err != nil {
		t.Fatal(err)
	}

	page := eng.ActiveOrders(asset, Buy, 0, 2)
	if len(page) != 2 || page[0].ID != ids[0] || page[1].ID != ids[1] {
		t.Fatalf("first page %v", pageIDs(page))
	}
	page = eng.ActiveOrders(asset, Buy, 2, 10)
	if len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[4] {
		t.Fatalf("second page %v", pageIDs(page))
	}
	if got := eng.ActiveOrders(asset, Buy, 100, 10); len(got) != 0 {
		t.Fatalf("out-of-range page %v, want empty", pageIDs(got))
	}
	if got := eng.ActiveOrders(asset, Buy, -1, 10); got != nil {
		t.Fatal("negative start should yield nothing")
	}
	if got := eng.ActiveOrders(asset, Sell, 0, 10); len(got) != 0 {
		t.Fatalf("sell side %v, want empty", pageIDs(got))
	}
}

func pageIDs(orders []Order) []uint64 {
	ids := make([]uint64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func TestTimestampsComeFromClock(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	bank := token.NewBank(exchange)
	eng, err := New(defaultConfig(), bank, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.WhitelistToken(owner, asset); err != nil {
		t.Fatal(err)
	}
	fund(t, bank, bob, 100)

	sellID := mustCreate(t, eng, bob, 100, 10, Sell)
	clock.advance(5 * time.Second)
	mustCreate(t, eng, alice, 100, 10, Buy)

	sell, _ := eng.Order(sellID)
	if sell.CreatedAt != 1_700_000_000_000 {
		t.Fatalf("sell createdAt %d", sell.CreatedAt)
	}
	trade, _ := eng.Trade(1)
	if trade.Timestamp != 1_700_000_005_000 {
		t.Fatalf("trade timestamp %d", trade.Timestamp)
	}
}

func TestConfigValidation(t *testing.T) {
	bank := token.NewBank(exchange)

	cfg := defaultConfig()
	cfg.FeeCollector = common.Address{}
	if _, err := New(cfg, bank); !errors.Is(err, ErrInvalidFeeCollector) {
		t.Fatalf("got %v, want ErrInvalidFeeCollector", err)
	}

	cfg = defaultConfig()
	cfg.FeeRateBps = 101
	if _, err := New(cfg, bank); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("got %v, want ErrFeeTooHigh", err)
	}

	if _, err := New(defaultConfig(), nil); err == nil {
		t.Fatal("nil ledger accepted")
	}
}

func TestSelfTrade(t *testing.T) {
	// Nothing prevents an account from crossing its own orders; the
	// matcher treats it like any other pair and indexes the trade once.
	eng, bank := newTestEngine(t, defaultConfig())
	fund(t, bank, alice, 100)

	mustCreate(t, eng, alice, 100, 10, Sell)
	mustCreate(t, eng, alice, 100, 10, Buy)

	trade, ok := eng.Trade(1)
	if !ok {
		t.Fatal("expected a self-trade")
	}
	if trade.Buyer != alice || trade.Seller != alice {
		t.Fatal("self-trade parties wrong")
	}
	if got := eng.UserTrades(alice); len(got) != 1 {
		t.Fatalf("self-trade indexed %d times, want 1", len(got))
	}
	bal, _ := bank.BalanceOf(context.Background(), asset, alice)
	if bal != 100 {
		t.Fatalf("self-trade changed balance to %d", bal)
	}
}
