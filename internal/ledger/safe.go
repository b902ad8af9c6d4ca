package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

// Safe wraps a raw token ledger so refused moves fail loudly: every
// false return becomes an error wrapping domain.ErrTransferFailed.
// This is the surface the desk consumes.
type Safe struct {
	token *Token
}

// NewSafe wraps a raw ledger.
func NewSafe(t *Token) *Safe {
	return &Safe{token: t}
}

var _ domain.TokenLedger = (*Safe)(nil)

// Token returns the wrapped raw ledger.
func (s *Safe) Token() *Token { return s.token }

// Addr returns the ledger's address identity.
func (s *Safe) Addr() string { return s.token.Addr() }

// BalanceOf returns the holder's balance.
func (s *Safe) BalanceOf(holder string) *uint256.Int {
	return s.token.BalanceOf(holder)
}

// Allowance returns what spender may still move on holder's behalf.
func (s *Safe) Allowance(holder, spender string) *uint256.Int {
	return s.token.Allowance(holder, spender)
}

// Transfer moves amount between holders or fails with ErrTransferFailed.
func (s *Safe) Transfer(from, to string, amount *uint256.Int) error {
	if !s.token.Transfer(from, to, amount) {
		return fmt.Errorf("token %s: transfer %s -> %s: %w",
			s.token.Addr(), from, to, domain.ErrTransferFailed)
	}
	return nil
}

// TransferFrom moves amount on behalf of from or fails with
// ErrTransferFailed.
func (s *Safe) TransferFrom(spender, from, to string, amount *uint256.Int) error {
	if !s.token.TransferFrom(spender, from, to, amount) {
		return fmt.Errorf("token %s: transfer-from %s -> %s: %w",
			s.token.Addr(), from, to, domain.ErrTransferFailed)
	}
	return nil
}

// Approve replaces spender's allowance on holder's account.
func (s *Safe) Approve(holder, spender string, amount *uint256.Int) error {
	if !s.token.Approve(holder, spender, amount) {
		return fmt.Errorf("token %s: approve %s for %s: %w",
			s.token.Addr(), spender, holder, domain.ErrTransferFailed)
	}
	return nil
}
