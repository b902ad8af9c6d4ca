package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

// Bank custodies native currency (wei) accounts. It stands in for the
// chain's value layer: the engine moves attached wei through it before
// dispatching a call and refunds through it on failure.
type Bank struct {
	mu       sync.RWMutex
	total    *uint256.Int
	balances map[string]*uint256.Int
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		total:    uint256.NewInt(0),
		balances: make(map[string]*uint256.Int),
	}
}

var _ domain.Bank = (*Bank)(nil)

// Mint credits newly issued wei. Genesis-only.
func (b *Bank) Mint(to string, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, overflow := new(uint256.Int).AddOverflow(b.total, amount)
	if overflow {
		panic(fmt.Sprintf("MINT_OVERFLOW: %s + %s", b.total.Dec(), amount.Dec()))
	}
	b.total = next
	bal := b.balanceLocked(to)
	bal.Add(bal, amount)
}

// TotalWei returns the total minted currency.
func (b *Bank) TotalWei() *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(uint256.Int).Set(b.total)
}

// BalanceOf returns the holder's wei balance.
func (b *Bank) BalanceOf(holder string) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[holder]; ok {
		return new(uint256.Int).Set(v)
	}
	return uint256.NewInt(0)
}

// Transfer moves wei between accounts. Fails with ErrInsufficientFunds
// when from cannot cover amount.
func (b *Bank) Transfer(from, to string, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balanceLocked(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("bank: %s holds %s, needs %s: %w",
			from, fromBal.Dec(), amount.Dec(), domain.ErrInsufficientFunds)
	}
	fromBal.Sub(fromBal, amount)
	toBal := b.balanceLocked(to)
	toBal.Add(toBal, amount)
	return nil
}

// balanceLocked returns the stored balance, creating a zero entry on
// first touch. Caller holds the write lock.
func (b *Bank) balanceLocked(holder string) *uint256.Int {
	v, ok := b.balances[holder]
	if !ok {
		v = uint256.NewInt(0)
		b.balances[holder] = v
	}
	return v
}
