package sim

import (
	"math"
	"math/rand"

	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

// ActionType defines the type of simulated desk action
type ActionType int

const (
	ActionHold ActionType = iota
	ActionBuy
	ActionSell
	ActionApprove
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionApprove:
		return "APPROVE"
	default:
		return "UNKNOWN"
	}
}

// Action represents a decision made by a policy.
type Action struct {
	Type   ActionType
	Amount *uint256.Int // wei for buys, tokens for sells and approvals
}

// Wallet is a trader's view of its own balances.
type Wallet struct {
	Addr     string
	Tokens   *uint256.Int
	Wei      *uint256.Int
	Approved *uint256.Int // allowance granted to the desk
}

// Policy decides a trader's next action from the latest desk snapshot
// and its own wallet. It is called synchronously by the driver loop.
type Policy interface {
	NextAction(status domain.DeskStatus, w Wallet) Action
}

// RandomTrader buys, sells and holds at random within its means. A
// fixed seed gives a reproducible session.
type RandomTrader struct {
	rng      *rand.Rand
	maxSpend uint64
}

// NewRandomTrader creates a trader spending at most maxSpendWei per buy.
func NewRandomTrader(seed int64, maxSpendWei uint64) *RandomTrader {
	if maxSpendWei == 0 {
		maxSpendWei = 1
	}
	return &RandomTrader{
		rng:      rand.New(rand.NewSource(seed)),
		maxSpend: maxSpendWei,
	}
}

// NextAction rolls buy/sell/hold. A sell whose amount exceeds the
// standing allowance becomes an approval; the sell itself comes on a
// later roll once the desk may pull the tokens.
func (p *RandomTrader) NextAction(st domain.DeskStatus, w Wallet) Action {
	if st.Paused || st.Closed {
		return Action{Type: ActionHold}
	}

	switch roll := p.rng.Intn(10); {
	case roll < 5:
		spend := p.randBelow(w.Wei, p.maxSpend)
		if spend == 0 {
			return Action{Type: ActionHold}
		}
		return Action{Type: ActionBuy, Amount: uint256.NewInt(spend)}
	case roll < 8:
		amount := p.randBelow(w.Tokens, math.MaxInt64)
		if amount == 0 {
			return Action{Type: ActionHold}
		}
		if w.Approved == nil || w.Approved.LtUint64(amount) {
			return Action{Type: ActionApprove, Amount: uint256.NewInt(amount)}
		}
		return Action{Type: ActionSell, Amount: uint256.NewInt(amount)}
	default:
		return Action{Type: ActionHold}
	}
}

// randBelow picks 1..min(balance, limit), or 0 when broke.
func (p *RandomTrader) randBelow(balance *uint256.Int, limit uint64) uint64 {
	if balance == nil || balance.IsZero() {
		return 0
	}
	max := limit
	if max > math.MaxInt64 {
		max = math.MaxInt64
	}
	if balance.LtUint64(max) {
		max = balance.Uint64()
	}
	return 1 + uint64(p.rng.Int63n(int64(max)))
}
