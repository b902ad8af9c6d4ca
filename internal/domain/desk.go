package domain

import (
	"fmt"

	"github.com/holiman/uint256"

	"tokendesk/pkg/safe"
)

// Desk is the fixed-price exchange state machine: one token reserve, one
// wei reserve, two owner-set price ratios and a running buyback liability.
// The host serializes calls (see engine), so no mutex is needed here;
// every method is all-or-nothing and leaves no partial state on failure.
type Desk struct {
	addr  string
	token TokenLedger
	bank  Bank
	guard AccessControl

	// buyCost: tokens obtainable per wei when buying from the desk.
	// sellValue: wei obtainable per token divisor when selling back.
	// Both are >= 1 at all times.
	buyCost   *uint256.Int
	sellValue *uint256.Int

	// netBought is the outstanding buyback liability in tokens:
	// cumulative tokens sold to buyers minus tokens bought back.
	netBought *uint256.Int

	closed bool
}

// NewDesk creates the desk with its collaborators and initial prices.
// Prices below one are rejected.
func NewDesk(addr string, token TokenLedger, bank Bank, guard AccessControl, buyCost, sellValue *uint256.Int) (*Desk, error) {
	if buyCost == nil || buyCost.IsZero() || sellValue == nil || sellValue.IsZero() {
		return nil, ErrZeroPrice
	}
	return &Desk{
		addr:      addr,
		token:     token,
		bank:      bank,
		guard:     guard,
		buyCost:   clone(buyCost),
		sellValue: clone(sellValue),
		netBought: uint256.NewInt(0),
	}, nil
}

// Addr returns the desk's account identity on the token ledger and bank.
func (d *Desk) Addr() string { return d.addr }

// Token returns the managed token ledger.
func (d *Desk) Token() TokenLedger { return d.token }

// Guard returns the access-control collaborator.
func (d *Desk) Guard() AccessControl { return d.guard }

// Closed reports whether the desk has been terminally closed.
func (d *Desk) Closed() bool { return d.closed }

// BuyCost returns the current buy ratio (tokens per wei).
func (d *Desk) BuyCost() *uint256.Int { return clone(d.buyCost) }

// SellValue returns the current sell divisor (tokens per wei paid out).
func (d *Desk) SellValue() *uint256.Int { return clone(d.sellValue) }

// NetAmountBought returns the outstanding buyback liability in tokens.
func (d *Desk) NetAmountBought() *uint256.Int { return clone(d.netBought) }

// AmountForSale returns the token reserve currently held by the desk.
func (d *Desk) AmountForSale() *uint256.Int {
	return d.token.BalanceOf(d.addr)
}

// QuoteBuyCost returns the minimum wei needed to buy amount tokens.
// Rounds UP so the caller never under-pays: truncation would let buyers
// underpay by up to buyCost-1 wei.
func (d *Desk) QuoteBuyCost(amount *uint256.Int) (*uint256.Int, error) {
	return safe.CeilDiv(amount, d.buyCost)
}

// QuoteSellValue returns the wei paid out for selling amount tokens.
// Floor division; rounding works in the desk's favor.
func (d *Desk) QuoteSellValue(amount *uint256.Int) (*uint256.Int, error) {
	return safe.Div(amount, d.sellValue)
}

// obligation returns the wei owed if every outstanding token were sold
// back at the current sell value. sellValue >= 1, so plain division.
func (d *Desk) obligation() *uint256.Int {
	return new(uint256.Int).Div(d.netBought, d.sellValue)
}

// Obligation returns the desk's current buyback obligation in wei.
func (d *Desk) Obligation() *uint256.Int { return d.obligation() }

// AvailableToCashout returns the wei surplus not needed to cover the
// buyback obligation. Fails with ErrInsufficientSurplus instead of
// wrapping when the obligation exceeds the reserve.
func (d *Desk) AvailableToCashout() (*uint256.Int, error) {
	surplus, err := safe.Sub(d.bank.BalanceOf(d.addr), d.obligation())
	if err != nil {
		return nil, ErrInsufficientSurplus
	}
	return surplus, nil
}

// ExtraBalanceNeeded returns how much additional wei the owner must
// supply to lower the sell divisor to proposed without going insolvent.
func (d *Desk) ExtraBalanceNeeded(proposedSellValue *uint256.Int) (*uint256.Int, error) {
	if proposedSellValue == nil || proposedSellValue.IsZero() {
		return nil, ErrZeroPrice
	}
	need := new(uint256.Int).Div(d.netBought, proposedSellValue)
	extra, err := safe.Sub(need, d.bank.BalanceOf(d.addr))
	if err != nil {
		// Reserve already covers the proposed obligation.
		return uint256.NewInt(0), nil
	}
	return extra, nil
}

// LacksFunds reports whether the wei reserve no longer covers the buyback
// obligation. Always false under correct operation; true means a bug.
func (d *Desk) LacksFunds() bool {
	return d.bank.BalanceOf(d.addr).Lt(d.obligation())
}

// Buy settles a purchase: the buyer has attached paid wei (already moved
// to the desk by the host) and receives paid*buyCost tokens. minTokens is
// the slippage guard; nil means no bound. Nothing is refunded when the
// purchase exceeds the bound: the attached wei is the sole price input.
func (d *Desk) Buy(buyer string, paid, minTokens *uint256.Int) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireRunning(); err != nil {
		return nil, err
	}

	amount, err := safe.Mul(paid, d.buyCost)
	if err != nil {
		return nil, err
	}
	if d.token.BalanceOf(d.addr).Lt(amount) {
		return nil, ErrInsufficientInventory
	}
	if minTokens != nil && amount.Lt(minTokens) {
		return nil, ErrSlippageExceeded
	}

	next, err := safe.Add(d.netBought, amount)
	if err != nil {
		return nil, err
	}

	// Effects before interactions: liability first, transfer last.
	prev := d.netBought
	d.netBought = next
	if err := d.token.Transfer(d.addr, buyer, amount); err != nil {
		d.netBought = prev
		return nil, err
	}

	return &Receipt{
		Kind:    KindBought,
		Actor:   buyer,
		Amount:  amount,
		Value:   clone(paid),
		BuyCost: clone(d.buyCost),
	}, nil
}

// Sell settles a buyback: the seller returns amount tokens (allowance
// granted beforehand) for amount/sellValue wei. weiExpected is the
// slippage guard; nil means no bound.
func (d *Desk) Sell(seller string, amount, weiExpected *uint256.Int) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireRunning(); err != nil {
		return nil, err
	}

	// The desk never buys back more than it has net-sold; this bounds
	// the outstanding liability.
	if d.netBought.Lt(amount) {
		return nil, ErrInsufficientBuyback
	}
	if d.token.Allowance(seller, d.addr).Lt(amount) {
		return nil, ErrInsufficientAllowance
	}

	value := new(uint256.Int).Div(amount, d.sellValue)
	if weiExpected != nil && value.Lt(weiExpected) {
		return nil, ErrSlippageExceeded
	}

	// Solvency assertion. netBought <= prior buys and every buy banked
	// its wei, so the reserve must cover value. A shortfall here is a
	// logic bug, not a user error: halt instead of failing the call.
	reserve := d.bank.BalanceOf(d.addr)
	if reserve.Lt(value) {
		panic(fmt.Sprintf("CONTRACT_INSOLVENT: owe %s wei, reserve %s", value.Dec(), reserve.Dec()))
	}

	next, err := safe.Sub(d.netBought, amount)
	if err != nil {
		panic(fmt.Sprintf("NET_BOUGHT_UNDERFLOW: %s - %s", d.netBought.Dec(), amount.Dec()))
	}

	prev := d.netBought
	d.netBought = next
	if err := d.token.TransferFrom(d.addr, seller, d.addr, amount); err != nil {
		d.netBought = prev
		return nil, err
	}
	if err := d.bank.Transfer(d.addr, seller, value); err != nil {
		// Reserve was asserted above; a refusal means host accounting broke.
		panic(fmt.Sprintf("CONTRACT_INSOLVENT: payout %s wei refused: %v", value.Dec(), err))
	}

	return &Receipt{
		Kind:      KindSold,
		Actor:     seller,
		Amount:    clone(amount),
		Value:     value,
		SellValue: clone(d.sellValue),
	}, nil
}

// Cashout pays the owner the surplus wei not backing the buyback
// obligation. Owner-only; works in any pause state. A zero surplus still
// succeeds and is recorded.
func (d *Desk) Cashout(caller string) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireOwner(caller); err != nil {
		return nil, err
	}

	surplus, err := d.AvailableToCashout()
	if err != nil {
		return nil, err
	}
	if err := d.bank.Transfer(d.addr, d.guard.Owner(), surplus); err != nil {
		return nil, err
	}

	return &Receipt{
		Kind:  KindCashedOut,
		Actor: caller,
		Value: surplus,
	}, nil
}

// AdjustPrices replaces the price ratios. Owner-only and paused-only;
// zero (or nil) means keep the current value. Any top-up the owner
// attached has already been banked by the host; the new obligation must
// be covered or the call fails with ErrUnderCapitalized and the host
// refunds the top-up.
func (d *Desk) AdjustPrices(caller string, newBuyCost, newSellValue *uint256.Int) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireOwner(caller); err != nil {
		return nil, err
	}
	if err := d.guard.RequirePaused(); err != nil {
		return nil, err
	}

	buyCost := d.buyCost
	if newBuyCost != nil && !newBuyCost.IsZero() {
		buyCost = clone(newBuyCost)
	}
	sellValue := d.sellValue
	if newSellValue != nil && !newSellValue.IsZero() {
		sellValue = clone(newSellValue)
	}

	// Lowering the sell divisor raises the wei owed per token; the desk
	// must stay solvent under the new ratio before it takes effect.
	obligation := new(uint256.Int).Div(d.netBought, sellValue)
	if d.bank.BalanceOf(d.addr).Lt(obligation) {
		return nil, ErrUnderCapitalized
	}

	d.buyCost = buyCost
	d.sellValue = sellValue

	return &Receipt{
		Kind:      KindPriceChanged,
		Actor:     caller,
		BuyCost:   clone(buyCost),
		SellValue: clone(sellValue),
	}, nil
}

// Close terminally shuts the desk: the whole token reserve and wei
// reserve go to the owner and every later call fails with ErrClosed.
// Owner-only and paused-only.
func (d *Desk) Close(caller string) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireOwner(caller); err != nil {
		return nil, err
	}
	if err := d.guard.RequirePaused(); err != nil {
		return nil, err
	}

	owner := d.guard.Owner()
	tokens := d.token.BalanceOf(d.addr)
	if err := d.token.Transfer(d.addr, owner, tokens); err != nil {
		return nil, err
	}
	wei := d.bank.BalanceOf(d.addr)
	if err := d.bank.Transfer(d.addr, owner, wei); err != nil {
		// The token leg already moved; there is no clean unwind.
		panic(fmt.Sprintf("CLOSE_PAYOUT_FAILED: %v", err))
	}
	d.closed = true

	return &Receipt{
		Kind:   KindClosed,
		Actor:  caller,
		Amount: tokens,
		Value:  wei,
	}, nil
}

// RescueToken moves amount of a stray token (mis-sent to the desk's
// address) to the owner. The managed token itself is refused: its
// reserve backs open liabilities.
func (d *Desk) RescueToken(caller string, stray TokenLedger, amount *uint256.Int) (*Receipt, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.guard.RequireOwner(caller); err != nil {
		return nil, err
	}
	if stray.Addr() == d.token.Addr() {
		return nil, ErrWrongToken
	}
	if err := stray.Transfer(d.addr, d.guard.Owner(), amount); err != nil {
		return nil, err
	}

	return &Receipt{
		Kind:   KindTokenRescued,
		Actor:  caller,
		Party:  stray.Addr(),
		Amount: clone(amount),
	}, nil
}

// Status returns a point-in-time snapshot for read models and dumps.
func (d *Desk) Status() DeskStatus {
	weiReserve := d.bank.BalanceOf(d.addr)
	obligation := d.obligation()
	surplus := uint256.NewInt(0)
	if s, err := safe.Sub(weiReserve, obligation); err == nil {
		surplus = s
	}
	return DeskStatus{
		Owner:           d.guard.Owner(),
		Paused:          d.guard.Paused(),
		Closed:          d.closed,
		BuyCost:         d.buyCost.Dec(),
		SellValue:       d.sellValue.Dec(),
		NetAmountBought: d.netBought.Dec(),
		TokenReserve:    d.token.BalanceOf(d.addr).Dec(),
		WeiReserve:      weiReserve.Dec(),
		Obligation:      obligation.Dec(),
		Surplus:         surplus.Dec(),
		LacksFunds:      weiReserve.Lt(obligation),
	}
}

func clone(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Set(x)
}
