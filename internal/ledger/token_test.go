package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

func u(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic(err)
	}
	return v
}

func TestToken_MintAndSupply(t *testing.T) {
	tok := NewToken("TDK", "Trade Desk Koin", "TDK", 18)

	tok.Mint("alice", u("1000"))
	tok.Mint("bob", u("500"))

	if tok.TotalSupply().Cmp(u("1500")) != 0 {
		t.Errorf("supply = %s, want 1500", tok.TotalSupply().Dec())
	}
	if tok.BalanceOf("alice").Cmp(u("1000")) != 0 {
		t.Errorf("alice = %s, want 1000", tok.BalanceOf("alice").Dec())
	}
	if !tok.BalanceOf("nobody").IsZero() {
		t.Error("unknown holder should read as zero")
	}
}

func TestToken_Transfer(t *testing.T) {
	tok := NewToken("TDK", "Trade Desk Koin", "TDK", 18)
	tok.Mint("alice", u("100"))

	if !tok.Transfer("alice", "bob", u("40")) {
		t.Fatal("covered transfer should succeed")
	}
	if tok.BalanceOf("alice").Cmp(u("60")) != 0 || tok.BalanceOf("bob").Cmp(u("40")) != 0 {
		t.Errorf("balances = %s/%s, want 60/40", tok.BalanceOf("alice").Dec(), tok.BalanceOf("bob").Dec())
	}

	if tok.Transfer("alice", "bob", u("61")) {
		t.Error("uncovered transfer should be refused")
	}
	if tok.BalanceOf("alice").Cmp(u("60")) != 0 {
		t.Error("refused transfer must not move funds")
	}

	// Self-transfer nets to zero.
	if !tok.Transfer("alice", "alice", u("10")) {
		t.Fatal("self transfer should succeed")
	}
	if tok.BalanceOf("alice").Cmp(u("60")) != 0 {
		t.Errorf("self transfer changed balance: %s", tok.BalanceOf("alice").Dec())
	}
}

func TestToken_TransferFrom(t *testing.T) {
	tok := NewToken("TDK", "Trade Desk Koin", "TDK", 18)
	tok.Mint("alice", u("100"))

	if tok.TransferFrom("desk", "alice", "desk", u("10")) {
		t.Error("transfer-from without allowance should be refused")
	}

	tok.Approve("alice", "desk", u("50"))
	if !tok.TransferFrom("desk", "alice", "desk", u("30")) {
		t.Fatal("allowed transfer-from should succeed")
	}
	if tok.Allowance("alice", "desk").Cmp(u("20")) != 0 {
		t.Errorf("allowance = %s, want 20", tok.Allowance("alice", "desk").Dec())
	}
	if tok.BalanceOf("desk").Cmp(u("30")) != 0 {
		t.Errorf("desk = %s, want 30", tok.BalanceOf("desk").Dec())
	}

	if tok.TransferFrom("desk", "alice", "desk", u("21")) {
		t.Error("transfer-from beyond the remaining allowance should be refused")
	}

	// Approve replaces, not accumulates.
	tok.Approve("alice", "desk", u("5"))
	if tok.Allowance("alice", "desk").Cmp(u("5")) != 0 {
		t.Errorf("allowance = %s, want 5", tok.Allowance("alice", "desk").Dec())
	}
}

func TestToken_TransferFromInsufficientBalance(t *testing.T) {
	tok := NewToken("TDK", "Trade Desk Koin", "TDK", 18)
	tok.Mint("alice", u("10"))
	tok.Approve("alice", "desk", u("100"))

	if tok.TransferFrom("desk", "alice", "desk", u("11")) {
		t.Error("transfer-from beyond the balance should be refused")
	}
	if tok.Allowance("alice", "desk").Cmp(u("100")) != 0 {
		t.Error("refused transfer-from must not spend allowance")
	}
}

func TestSafe_FailsLoudly(t *testing.T) {
	tok := NewToken("TDK", "Trade Desk Koin", "TDK", 18)
	tok.Mint("alice", u("10"))
	safe := NewSafe(tok)

	if err := safe.Transfer("alice", "bob", u("10")); err != nil {
		t.Fatalf("covered transfer failed: %v", err)
	}
	err := safe.Transfer("alice", "bob", u("1"))
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Errorf("err = %v, want ErrTransferFailed", err)
	}

	err = safe.TransferFrom("desk", "bob", "desk", u("1"))
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Errorf("transfer-from err = %v, want ErrTransferFailed", err)
	}

	if err := safe.Approve("bob", "desk", u("5")); err != nil {
		t.Errorf("approve failed: %v", err)
	}
	if safe.Allowance("bob", "desk").Cmp(u("5")) != 0 {
		t.Error("approve through the wrapper should stick")
	}
}
