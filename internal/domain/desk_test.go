package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"tokendesk/pkg/safe"
)

// ---------------------------------------------------------------------
// Test doubles for the collaborator contracts. memToken can be told to
// refuse transfers so rollback paths are reachable.
// ---------------------------------------------------------------------

type memToken struct {
	addr       string
	balances   map[string]*uint256.Int
	allowances map[string]map[string]*uint256.Int
	refuse     bool
}

func newMemToken(addr string) *memToken {
	return &memToken{
		addr:       addr,
		balances:   make(map[string]*uint256.Int),
		allowances: make(map[string]map[string]*uint256.Int),
	}
}

func (m *memToken) Addr() string { return m.addr }

func (m *memToken) BalanceOf(holder string) *uint256.Int {
	if b, ok := m.balances[holder]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (m *memToken) Allowance(holder, spender string) *uint256.Int {
	if inner, ok := m.allowances[holder]; ok {
		if a, ok := inner[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return uint256.NewInt(0)
}

func (m *memToken) approve(holder, spender string, amount *uint256.Int) {
	inner, ok := m.allowances[holder]
	if !ok {
		inner = make(map[string]*uint256.Int)
		m.allowances[holder] = inner
	}
	inner[spender] = new(uint256.Int).Set(amount)
}

func (m *memToken) mint(to string, amount *uint256.Int) {
	m.balances[to] = new(uint256.Int).Add(m.BalanceOf(to), amount)
}

func (m *memToken) Transfer(from, to string, amount *uint256.Int) error {
	if m.refuse || m.BalanceOf(from).Lt(amount) {
		return fmt.Errorf("token %s: %w", m.addr, ErrTransferFailed)
	}
	m.balances[from] = new(uint256.Int).Sub(m.BalanceOf(from), amount)
	m.balances[to] = new(uint256.Int).Add(m.BalanceOf(to), amount)
	return nil
}

func (m *memToken) TransferFrom(spender, from, to string, amount *uint256.Int) error {
	if m.refuse || m.Allowance(from, spender).Lt(amount) {
		return fmt.Errorf("token %s: %w", m.addr, ErrTransferFailed)
	}
	if err := m.Transfer(from, to, amount); err != nil {
		return err
	}
	m.allowances[from][spender] = new(uint256.Int).Sub(m.Allowance(from, spender), amount)
	return nil
}

type memBank struct {
	balances map[string]*uint256.Int
}

func newMemBank() *memBank {
	return &memBank{balances: make(map[string]*uint256.Int)}
}

func (b *memBank) BalanceOf(holder string) *uint256.Int {
	if v, ok := b.balances[holder]; ok {
		return new(uint256.Int).Set(v)
	}
	return uint256.NewInt(0)
}

func (b *memBank) mint(to string, amount *uint256.Int) {
	b.balances[to] = new(uint256.Int).Add(b.BalanceOf(to), amount)
}

func (b *memBank) Transfer(from, to string, amount *uint256.Int) error {
	if b.BalanceOf(from).Lt(amount) {
		return fmt.Errorf("bank: %w", ErrInsufficientFunds)
	}
	b.balances[from] = new(uint256.Int).Sub(b.BalanceOf(from), amount)
	b.balances[to] = new(uint256.Int).Add(b.BalanceOf(to), amount)
	return nil
}

type memGuard struct {
	owner  string
	paused bool
}

func (g *memGuard) Owner() string { return g.owner }

func (g *memGuard) IsOwner(caller string) bool { return caller == g.owner }

func (g *memGuard) Paused() bool { return g.paused }

func (g *memGuard) RequireOwner(caller string) error {
	if caller != g.owner {
		return ErrUnauthorized
	}
	return nil
}

func (g *memGuard) RequireRunning() error {
	if g.paused {
		return ErrPaused
	}
	return nil
}

func (g *memGuard) RequirePaused() error {
	if !g.paused {
		return ErrNotPaused
	}
	return nil
}

// ---------------------------------------------------------------------

const (
	deskAddr = "desk"
	owner    = "alice"
	buyer    = "bob"
	seller   = "bob"
)

func u(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic(err)
	}
	return v
}

// newTestDesk builds a desk with buyCost=3, sellValue=3 and a
// 1,000,000-token reserve.
func newTestDesk(t *testing.T) (*Desk, *memToken, *memBank, *memGuard) {
	t.Helper()
	token := newMemToken("TDK")
	bank := newMemBank()
	guard := &memGuard{owner: owner}
	token.mint(deskAddr, u("1000000"))

	desk, err := NewDesk(deskAddr, token, bank, guard, u("3"), u("3"))
	if err != nil {
		t.Fatalf("NewDesk failed: %v", err)
	}
	return desk, token, bank, guard
}

// buyAndBank performs a buy and banks the attached wei the way the host
// does before dispatching the call.
func buyAndBank(t *testing.T, desk *Desk, bank *memBank, paid *uint256.Int) *Receipt {
	t.Helper()
	bank.mint(deskAddr, paid)
	rcpt, err := desk.Buy(buyer, paid, nil)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	return rcpt
}

func TestNewDesk_RejectsZeroPrices(t *testing.T) {
	token := newMemToken("TDK")
	bank := newMemBank()
	guard := &memGuard{owner: owner}

	if _, err := NewDesk(deskAddr, token, bank, guard, u("0"), u("3")); !errors.Is(err, ErrZeroPrice) {
		t.Errorf("zero buyCost err = %v, want ErrZeroPrice", err)
	}
	if _, err := NewDesk(deskAddr, token, bank, guard, u("3"), u("0")); !errors.Is(err, ErrZeroPrice) {
		t.Errorf("zero sellValue err = %v, want ErrZeroPrice", err)
	}
}

func TestQuoteBuyCost_CeilingDivision(t *testing.T) {
	desk, _, _, _ := newTestDesk(t)

	cases := []struct {
		amount string
		want   string
	}{
		{"7", "3"},
		{"9", "3"},
		{"1", "1"},
		{"3", "1"},
		{"0", "0"},
		{"4", "2"},
	}
	for _, tc := range cases {
		got, err := desk.QuoteBuyCost(u(tc.amount))
		if err != nil {
			t.Fatalf("QuoteBuyCost(%s) failed: %v", tc.amount, err)
		}
		if got.Cmp(u(tc.want)) != 0 {
			t.Errorf("QuoteBuyCost(%s) = %s, want %s", tc.amount, got.Dec(), tc.want)
		}
	}
}

func TestQuoteSellValue_FloorDivision(t *testing.T) {
	desk, _, _, _ := newTestDesk(t)

	cases := []struct {
		amount string
		want   string
	}{
		{"7", "2"},
		{"9", "3"},
		{"2", "0"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := desk.QuoteSellValue(u(tc.amount))
		if err != nil {
			t.Fatalf("QuoteSellValue(%s) failed: %v", tc.amount, err)
		}
		if got.Cmp(u(tc.want)) != 0 {
			t.Errorf("QuoteSellValue(%s) = %s, want %s", tc.amount, got.Dec(), tc.want)
		}
	}
}

func TestBuy_Settlement(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)

	rcpt := buyAndBank(t, desk, bank, u("10"))

	if rcpt.Amount.Cmp(u("30")) != 0 {
		t.Errorf("Expected 30 tokens purchased, got %s", rcpt.Amount.Dec())
	}
	if rcpt.BuyCost.Cmp(u("3")) != 0 {
		t.Errorf("Receipt buyCost = %s, want 3", rcpt.BuyCost.Dec())
	}
	if desk.NetAmountBought().Cmp(u("30")) != 0 {
		t.Errorf("netAmountBought = %s, want 30", desk.NetAmountBought().Dec())
	}
	if token.BalanceOf(buyer).Cmp(u("30")) != 0 {
		t.Errorf("buyer balance = %s, want 30", token.BalanceOf(buyer).Dec())
	}
	if token.BalanceOf(deskAddr).Cmp(u("999970")) != 0 {
		t.Errorf("desk reserve = %s, want 999970", token.BalanceOf(deskAddr).Dec())
	}
}

func TestBuy_ZeroPaid(t *testing.T) {
	desk, token, _, _ := newTestDesk(t)

	// A zero-wei buy settles as a zero-token purchase; nothing moves.
	rcpt, err := desk.Buy(buyer, u("0"), nil)
	if err != nil {
		t.Fatalf("zero buy failed: %v", err)
	}
	if !rcpt.Amount.IsZero() {
		t.Errorf("Expected zero purchase, got %s", rcpt.Amount.Dec())
	}
	if !desk.NetAmountBought().IsZero() {
		t.Errorf("netAmountBought = %s, want 0", desk.NetAmountBought().Dec())
	}
	if !token.BalanceOf(buyer).IsZero() {
		t.Errorf("buyer balance = %s, want 0", token.BalanceOf(buyer).Dec())
	}
}

func TestBuy_InsufficientInventory(t *testing.T) {
	desk, _, _, _ := newTestDesk(t)

	// 1,000,000 reserve / buyCost 3: paid 333334 wants 1000002 tokens.
	_, err := desk.Buy(buyer, u("333334"), nil)
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Errorf("err = %v, want ErrInsufficientInventory", err)
	}
	if !desk.NetAmountBought().IsZero() {
		t.Error("failed buy must not change netAmountBought")
	}
}

func TestBuy_SlippageBound(t *testing.T) {
	desk, _, _, _ := newTestDesk(t)

	if _, err := desk.Buy(buyer, u("10"), u("31")); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("err = %v, want ErrSlippageExceeded", err)
	}
	// Exactly at the bound settles.
	if _, err := desk.Buy(buyer, u("10"), u("30")); err != nil {
		t.Errorf("buy at exact bound failed: %v", err)
	}
}

func TestBuy_WhilePaused(t *testing.T) {
	desk, _, _, guard := newTestDesk(t)
	guard.paused = true

	if _, err := desk.Buy(buyer, u("10"), nil); !errors.Is(err, ErrPaused) {
		t.Errorf("err = %v, want ErrPaused", err)
	}
}

func TestBuy_OverflowingPaid(t *testing.T) {
	desk, _, _, _ := newTestDesk(t)

	max := new(uint256.Int)
	max.SetAllOne()
	if _, err := desk.Buy(buyer, max, nil); !errors.Is(err, safe.ErrOverflow) {
		t.Errorf("err = %v, want safe.ErrOverflow", err)
	}
	if !desk.NetAmountBought().IsZero() {
		t.Error("failed buy must not change netAmountBought")
	}
}

func TestBuy_TransferRefusalRollsBack(t *testing.T) {
	desk, token, _, _ := newTestDesk(t)
	token.refuse = true

	_, err := desk.Buy(buyer, u("10"), nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	if !desk.NetAmountBought().IsZero() {
		t.Errorf("netAmountBought = %s after refused transfer, want 0", desk.NetAmountBought().Dec())
	}
}

func TestSell_Settlement(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10")) // 30 tokens out, 10 wei banked

	token.approve(seller, deskAddr, u("30"))
	rcpt, err := desk.Sell(seller, u("30"), nil)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if rcpt.Value.Cmp(u("10")) != 0 {
		t.Errorf("payout = %s wei, want 10", rcpt.Value.Dec())
	}
	if !desk.NetAmountBought().IsZero() {
		t.Errorf("netAmountBought = %s, want 0", desk.NetAmountBought().Dec())
	}
	if bank.BalanceOf(seller).Cmp(u("10")) != 0 {
		t.Errorf("seller wei = %s, want 10", bank.BalanceOf(seller).Dec())
	}
	if token.BalanceOf(deskAddr).Cmp(u("1000000")) != 0 {
		t.Errorf("desk reserve = %s, want 1000000", token.BalanceOf(deskAddr).Dec())
	}
}

func TestSell_ExceedsBuyback(t *testing.T) {
	desk, token, _, _ := newTestDesk(t)
	token.mint(seller, u("100"))
	token.approve(seller, deskAddr, u("100"))

	// netAmountBought is 0: nothing has been net-sold yet.
	if _, err := desk.Sell(seller, u("1"), nil); !errors.Is(err, ErrInsufficientBuyback) {
		t.Errorf("err = %v, want ErrInsufficientBuyback", err)
	}
}

func TestSell_AllowanceRequired(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))

	token.approve(seller, deskAddr, u("29"))
	if _, err := desk.Sell(seller, u("30"), nil); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestSell_SlippageBound(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))
	token.approve(seller, deskAddr, u("30"))

	// 30 tokens pay out 10 wei; expecting 11 must fail.
	if _, err := desk.Sell(seller, u("30"), u("11")); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("err = %v, want ErrSlippageExceeded", err)
	}
	if _, err := desk.Sell(seller, u("30"), u("10")); err != nil {
		t.Errorf("sell at exact bound failed: %v", err)
	}
}

func TestSell_WhilePaused(t *testing.T) {
	desk, _, bank, guard := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))
	guard.paused = true

	if _, err := desk.Sell(seller, u("30"), nil); !errors.Is(err, ErrPaused) {
		t.Errorf("err = %v, want ErrPaused", err)
	}
}

func TestSell_InsolvencyPanics(t *testing.T) {
	desk, token, _, _ := newTestDesk(t)

	// Buy WITHOUT banking the attached wei: simulates a host accounting
	// bug. The later sell must halt, not fail softly.
	if _, err := desk.Buy(buyer, u("10"), nil); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	token.approve(seller, deskAddr, u("30"))

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Sell should have panicked on insolvency")
		}
		if !strings.Contains(fmt.Sprint(r), "CONTRACT_INSOLVENT") {
			t.Errorf("panic = %v, want CONTRACT_INSOLVENT", r)
		}
	}()
	desk.Sell(seller, u("30"), nil)
}

func TestSell_TransferRefusalRollsBack(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))
	token.approve(seller, deskAddr, u("30"))
	token.refuse = true

	_, err := desk.Sell(seller, u("30"), nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	if desk.NetAmountBought().Cmp(u("30")) != 0 {
		t.Errorf("netAmountBought = %s after refused pull, want 30", desk.NetAmountBought().Dec())
	}
	if !bank.BalanceOf(seller).IsZero() {
		t.Error("no wei may move when the token pull is refused")
	}
}

func TestRoundTrip_BuyThenSell(t *testing.T) {
	desk, token, bank, _ := newTestDesk(t)

	before := desk.NetAmountBought()
	rcpt := buyAndBank(t, desk, bank, u("11")) // 33 tokens, 11 wei banked

	token.approve(seller, deskAddr, rcpt.Amount)
	if _, err := desk.Sell(seller, rcpt.Amount, nil); err != nil {
		t.Fatalf("Sell back failed: %v", err)
	}

	if desk.NetAmountBought().Cmp(before) != 0 {
		t.Errorf("round trip changed netAmountBought: %s", desk.NetAmountBought().Dec())
	}
	if desk.LacksFunds() {
		t.Error("round trip must not cause insolvency")
	}
	// Floor rounding never pays out more than was paid in.
	if bank.BalanceOf(seller).Gt(u("11")) {
		t.Errorf("seller recovered %s wei from an 11 wei buy", bank.BalanceOf(seller).Dec())
	}
}

func TestCashout(t *testing.T) {
	t.Run("owner receives the surplus", func(t *testing.T) {
		desk, _, bank, _ := newTestDesk(t)
		buyAndBank(t, desk, bank, u("10")) // obligation 30/3 = 10, reserve 10
		bank.mint(deskAddr, u("7"))        // direct top-up: surplus 7

		rcpt, err := desk.Cashout(owner)
		if err != nil {
			t.Fatalf("Cashout failed: %v", err)
		}
		if rcpt.Value.Cmp(u("7")) != 0 {
			t.Errorf("cashed out %s, want 7", rcpt.Value.Dec())
		}
		if bank.BalanceOf(owner).Cmp(u("7")) != 0 {
			t.Errorf("owner wei = %s, want 7", bank.BalanceOf(owner).Dec())
		}
		if bank.BalanceOf(deskAddr).Cmp(u("10")) != 0 {
			t.Errorf("desk must keep the obligation, has %s", bank.BalanceOf(deskAddr).Dec())
		}
	})

	t.Run("zero surplus still succeeds", func(t *testing.T) {
		desk, _, bank, _ := newTestDesk(t)
		buyAndBank(t, desk, bank, u("10"))

		rcpt, err := desk.Cashout(owner)
		if err != nil {
			t.Fatalf("Cashout failed: %v", err)
		}
		if !rcpt.Value.IsZero() {
			t.Errorf("cashed out %s, want 0", rcpt.Value.Dec())
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		desk, _, _, _ := newTestDesk(t)
		if _, err := desk.Cashout(buyer); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("obligation above reserve fails", func(t *testing.T) {
		desk, _, _, _ := newTestDesk(t)
		// Buy without banking: obligation 10, reserve 0.
		if _, err := desk.Buy(buyer, u("10"), nil); err != nil {
			t.Fatalf("Buy failed: %v", err)
		}
		if _, err := desk.Cashout(owner); !errors.Is(err, ErrInsufficientSurplus) {
			t.Errorf("err = %v, want ErrInsufficientSurplus", err)
		}
	})
}

func TestAdjustPrices(t *testing.T) {
	t.Run("requires owner and pause", func(t *testing.T) {
		desk, _, _, guard := newTestDesk(t)
		if _, err := desk.AdjustPrices(buyer, u("4"), u("4")); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
		if _, err := desk.AdjustPrices(owner, u("4"), u("4")); !errors.Is(err, ErrNotPaused) {
			t.Errorf("err = %v, want ErrNotPaused", err)
		}
		guard.paused = true
		if _, err := desk.AdjustPrices(owner, u("4"), u("4")); err != nil {
			t.Errorf("AdjustPrices failed: %v", err)
		}
	})

	t.Run("zero keeps the current ratio", func(t *testing.T) {
		desk, _, _, guard := newTestDesk(t)
		guard.paused = true

		rcpt, err := desk.AdjustPrices(owner, u("0"), u("5"))
		if err != nil {
			t.Fatalf("AdjustPrices failed: %v", err)
		}
		if desk.BuyCost().Cmp(u("3")) != 0 {
			t.Errorf("buyCost = %s, want 3 (kept)", desk.BuyCost().Dec())
		}
		if desk.SellValue().Cmp(u("5")) != 0 {
			t.Errorf("sellValue = %s, want 5", desk.SellValue().Dec())
		}
		if rcpt.BuyCost.Cmp(u("3")) != 0 || rcpt.SellValue.Cmp(u("5")) != 0 {
			t.Errorf("receipt prices = %s/%s, want 3/5", rcpt.BuyCost.Dec(), rcpt.SellValue.Dec())
		}
	})

	t.Run("under-capitalized change is rejected", func(t *testing.T) {
		desk, _, bank, guard := newTestDesk(t)
		buyAndBank(t, desk, bank, u("10")) // netBought 30, reserve 10
		guard.paused = true

		// sellValue 1 would owe 30 wei against a 10 wei reserve.
		if _, err := desk.AdjustPrices(owner, u("0"), u("1")); !errors.Is(err, ErrUnderCapitalized) {
			t.Errorf("err = %v, want ErrUnderCapitalized", err)
		}
		if desk.SellValue().Cmp(u("3")) != 0 {
			t.Error("failed adjust must not change prices")
		}

		// A 20 wei top-up (banked by the host first) makes it solvent.
		bank.mint(deskAddr, u("20"))
		if _, err := desk.AdjustPrices(owner, u("0"), u("1")); err != nil {
			t.Errorf("AdjustPrices with top-up failed: %v", err)
		}
	})
}

func TestExtraBalanceNeeded(t *testing.T) {
	desk, _, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10")) // netBought 30, reserve 10

	// sellValue 1 → obligation 30, reserve 10 → need 20 more.
	extra, err := desk.ExtraBalanceNeeded(u("1"))
	if err != nil {
		t.Fatalf("ExtraBalanceNeeded failed: %v", err)
	}
	if extra.Cmp(u("20")) != 0 {
		t.Errorf("extra = %s, want 20", extra.Dec())
	}

	// sellValue 30 → obligation 1, already covered.
	extra, err = desk.ExtraBalanceNeeded(u("30"))
	if err != nil {
		t.Fatalf("ExtraBalanceNeeded failed: %v", err)
	}
	if !extra.IsZero() {
		t.Errorf("extra = %s, want 0", extra.Dec())
	}

	if _, err := desk.ExtraBalanceNeeded(u("0")); !errors.Is(err, ErrZeroPrice) {
		t.Errorf("err = %v, want ErrZeroPrice", err)
	}
}

func TestClose(t *testing.T) {
	desk, token, bank, guard := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))

	if _, err := desk.Close(owner); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("close while running err = %v, want ErrNotPaused", err)
	}
	guard.paused = true
	if _, err := desk.Close(buyer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("close by stranger err = %v, want ErrUnauthorized", err)
	}

	rcpt, err := desk.Close(owner)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if rcpt.Amount.Cmp(u("999970")) != 0 {
		t.Errorf("tokens swept = %s, want 999970", rcpt.Amount.Dec())
	}
	if token.BalanceOf(owner).Cmp(u("999970")) != 0 {
		t.Errorf("owner tokens = %s, want 999970", token.BalanceOf(owner).Dec())
	}
	if bank.BalanceOf(owner).Cmp(u("10")) != 0 {
		t.Errorf("owner wei = %s, want 10", bank.BalanceOf(owner).Dec())
	}
	if !desk.Closed() {
		t.Fatal("desk should be closed")
	}

	// Everything fails afterwards, pause state notwithstanding.
	guard.paused = false
	if _, err := desk.Buy(buyer, u("1"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("buy after close err = %v, want ErrClosed", err)
	}
	if _, err := desk.Sell(seller, u("1"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("sell after close err = %v, want ErrClosed", err)
	}
	if _, err := desk.Cashout(owner); !errors.Is(err, ErrClosed) {
		t.Errorf("cashout after close err = %v, want ErrClosed", err)
	}
	guard.paused = true
	if _, err := desk.AdjustPrices(owner, u("4"), u("4")); !errors.Is(err, ErrClosed) {
		t.Errorf("adjust after close err = %v, want ErrClosed", err)
	}
	if _, err := desk.Close(owner); !errors.Is(err, ErrClosed) {
		t.Errorf("second close err = %v, want ErrClosed", err)
	}
}

func TestRescueToken(t *testing.T) {
	desk, token, _, _ := newTestDesk(t)

	stray := newMemToken("OOPS")
	stray.mint(deskAddr, u("500"))

	rcpt, err := desk.RescueToken(owner, stray, u("500"))
	if err != nil {
		t.Fatalf("RescueToken failed: %v", err)
	}
	if rcpt.Party != "OOPS" {
		t.Errorf("receipt party = %s, want OOPS", rcpt.Party)
	}
	if stray.BalanceOf(owner).Cmp(u("500")) != 0 {
		t.Errorf("owner stray balance = %s, want 500", stray.BalanceOf(owner).Dec())
	}

	// The managed token is never rescuable: its reserve backs liabilities.
	if _, err := desk.RescueToken(owner, token, u("1")); !errors.Is(err, ErrWrongToken) {
		t.Errorf("err = %v, want ErrWrongToken", err)
	}
	if _, err := desk.RescueToken(buyer, stray, u("1")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestLacksFunds(t *testing.T) {
	desk, _, bank, _ := newTestDesk(t)

	if desk.LacksFunds() {
		t.Error("fresh desk must not lack funds")
	}
	buyAndBank(t, desk, bank, u("10"))
	if desk.LacksFunds() {
		t.Error("banked buy must keep the desk solvent")
	}

	// Buy without banking simulates the bug LacksFunds exists to expose.
	if _, err := desk.Buy(buyer, u("10"), nil); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if !desk.LacksFunds() {
		t.Error("unbanked buy should trip LacksFunds")
	}
}

func TestStatus(t *testing.T) {
	desk, _, bank, _ := newTestDesk(t)
	buyAndBank(t, desk, bank, u("10"))
	bank.mint(deskAddr, u("5"))

	st := desk.Status()
	if st.Owner != owner {
		t.Errorf("status owner = %s, want %s", st.Owner, owner)
	}
	if st.NetAmountBought != "30" {
		t.Errorf("status netAmountBought = %s, want 30", st.NetAmountBought)
	}
	if st.WeiReserve != "15" || st.Obligation != "10" || st.Surplus != "5" {
		t.Errorf("status reserves = %s/%s/%s, want 15/10/5", st.WeiReserve, st.Obligation, st.Surplus)
	}
	if st.LacksFunds {
		t.Error("status should not report lacking funds")
	}
}
