package domain

import "github.com/holiman/uint256"

// TokenLedger is the external fungible-token account system the desk
// operates on. Implementations must fail loudly: a refused move returns
// an error wrapping ErrTransferFailed, never a silent false.
type TokenLedger interface {
	// Addr returns the ledger's own address identity.
	Addr() string
	BalanceOf(holder string) *uint256.Int
	Allowance(holder, spender string) *uint256.Int
	Transfer(from, to string, amount *uint256.Int) error
	TransferFrom(spender, from, to string, amount *uint256.Int) error
}

// Bank custodies native currency (wei) accounts. The host moves attached
// value through it before dispatching a call and refunds on failure.
type Bank interface {
	BalanceOf(holder string) *uint256.Int
	Transfer(from, to string, amount *uint256.Int) error
}

// AccessControl gates privileged and pause-sensitive operations.
// The desk consults it at the top of each operation instead of
// inheriting modifier behavior.
type AccessControl interface {
	Owner() string
	IsOwner(caller string) bool
	Paused() bool

	// RequireOwner fails with ErrUnauthorized for non-owners.
	RequireOwner(caller string) error
	// RequireRunning fails with ErrPaused while trading is suspended.
	RequireRunning() error
	// RequirePaused fails with ErrNotPaused while trading is live.
	RequirePaused() error
}
