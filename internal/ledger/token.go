// Package ledger provides the account systems the desk trades against:
// an ERC20-style fungible-token ledger and a native-currency bank. Both
// are in-memory and guarded for concurrent reads; the engine serializes
// all writes.
package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// Token is an ERC20-style ledger: balances, spender allowances and a
// total supply. Moves return false when refused, matching the raw ERC20
// bool convention; wrap with Safe to get errors instead.
type Token struct {
	mu         sync.RWMutex
	addr       string
	name       string
	symbol     string
	decimals   uint8
	supply     *uint256.Int
	balances   map[string]*uint256.Int
	allowances map[string]map[string]*uint256.Int
}

// NewToken creates an empty ledger with the given identity.
func NewToken(addr, name, symbol string, decimals uint8) *Token {
	return &Token{
		addr:       addr,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		supply:     uint256.NewInt(0),
		balances:   make(map[string]*uint256.Int),
		allowances: make(map[string]map[string]*uint256.Int),
	}
}

// Addr returns the ledger's address identity.
func (t *Token) Addr() string { return t.addr }

// Name returns the token name.
func (t *Token) Name() string { return t.name }

// Symbol returns the token symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the display precision.
func (t *Token) Decimals() uint8 { return t.decimals }

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.supply)
}

// Mint credits newly created tokens. Genesis-only; the supply must never
// wrap.
func (t *Token) Mint(to string, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, overflow := new(uint256.Int).AddOverflow(t.supply, amount)
	if overflow {
		panic(fmt.Sprintf("MINT_OVERFLOW: %s + %s", t.supply.Dec(), amount.Dec()))
	}
	t.supply = next
	bal := t.balanceLocked(to)
	bal.Add(bal, amount)
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(holder string) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[holder]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

// Allowance returns what spender may still move on holder's behalf.
func (t *Token) Allowance(holder, spender string) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if inner, ok := t.allowances[holder]; ok {
		if a, ok := inner[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return uint256.NewInt(0)
}

// Approve replaces spender's allowance on holder's account.
func (t *Token) Approve(holder, spender string, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	inner, ok := t.allowances[holder]
	if !ok {
		inner = make(map[string]*uint256.Int)
		t.allowances[holder] = inner
	}
	inner[spender] = new(uint256.Int).Set(amount)
	return true
}

// Transfer moves amount from one holder to another. Refused (false) when
// the balance does not cover it.
func (t *Token) Transfer(from, to string, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount on behalf of from, spending spender's
// allowance. The allowance is only decremented when the move succeeds.
func (t *Token) TransferFrom(spender, from, to string, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	inner, ok := t.allowances[from]
	if !ok {
		return false
	}
	allowed, ok := inner[spender]
	if !ok || allowed.Lt(amount) {
		return false
	}
	if !t.move(from, to, amount) {
		return false
	}
	allowed.Sub(allowed, amount)
	return true
}

// move debits from and credits to. Caller holds the write lock.
// Balances are bounded by the minted supply, so the credit cannot wrap.
func (t *Token) move(from, to string, amount *uint256.Int) bool {
	fromBal := t.balanceLocked(from)
	if fromBal.Lt(amount) {
		return false
	}
	fromBal.Sub(fromBal, amount)
	toBal := t.balanceLocked(to)
	toBal.Add(toBal, amount)
	return true
}

// balanceLocked returns the stored balance, creating a zero entry on
// first touch. Caller holds the write lock.
func (t *Token) balanceLocked(holder string) *uint256.Int {
	b, ok := t.balances[holder]
	if !ok {
		b = uint256.NewInt(0)
		t.balances[holder] = b
	}
	return b
}
