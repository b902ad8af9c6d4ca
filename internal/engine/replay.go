package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"tokendesk/internal/domain"
)

// GenesisAccount seeds one account's starting balances.
type GenesisAccount struct {
	Addr   string
	Tokens *uint256.Int
	Wei    *uint256.Int
}

// InitGenesis records the desk's starting state into the journal and
// mints the seeded balances. The genesis and funding records make the
// journal a closed system: replaying it from an empty ledger reproduces
// every balance without external inputs.
//
// Must run before the loop starts, on a fresh journal only.
func (s *Sequencer) InitGenesis(ctx context.Context, accounts []GenesisAccount) error {
	if s.nextSeq != 1 {
		return fmt.Errorf("genesis on a non-empty journal (next seq %d)", s.nextSeq)
	}

	if err := s.appendInit(ctx, &domain.TradeRecord{
		Kind:         domain.KindGenesis,
		Actor:        s.guard.Owner(),
		Counterparty: s.token.Addr(),
		BuyCost:      s.desk.BuyCost().Dec(),
		SellValue:    s.desk.SellValue().Dec(),
	}); err != nil {
		return err
	}

	for _, acct := range accounts {
		tokens := orZero(acct.Tokens)
		wei := orZero(acct.Wei)
		if err := s.appendInit(ctx, &domain.TradeRecord{
			Kind:   domain.KindFunded,
			Actor:  acct.Addr,
			Amount: tokens.Dec(),
			Value:  wei.Dec(),
		}); err != nil {
			return err
		}
		s.token.Token().Mint(acct.Addr, tokens)
		s.bank.Mint(acct.Addr, wei)
	}
	return nil
}

func (s *Sequencer) appendInit(ctx context.Context, rec *domain.TradeRecord) error {
	rec.EventID = uuid.NewString()
	rec.Seq = s.nextSeq
	if s.journal != nil {
		if err := s.journal.Append(ctx, rec); err != nil {
			return fmt.Errorf("journal genesis: %w", err)
		}
	}
	s.nextSeq++
	return nil
}

// Replay re-executes journaled records against empty ledgers, in seq
// order, rebuilding the exact pre-shutdown state. Replay dispatches
// through the same settlement logic as live traffic and asserts each
// receipt matches the stored record; any mismatch means the journal and
// the code disagree, and running on is unsafe.
//
// Must run before the loop starts.
func (s *Sequencer) Replay(recs []domain.TradeRecord) {
	for i := range recs {
		rec := &recs[i]
		if rec.Seq != s.nextSeq {
			panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected seq %d, journal has %d", s.nextSeq, rec.Seq))
		}
		s.replayRecord(rec)
		s.nextSeq++
	}
}

func (s *Sequencer) replayRecord(rec *domain.TradeRecord) {
	switch rec.Kind {
	case domain.KindGenesis:
		if s.desk.BuyCost().Dec() != rec.BuyCost || s.desk.SellValue().Dec() != rec.SellValue {
			replayDiverged(rec, fmt.Sprintf("genesis prices %s/%s, desk has %s/%s",
				rec.BuyCost, rec.SellValue, s.desk.BuyCost().Dec(), s.desk.SellValue().Dec()))
		}
		if s.token.Addr() != rec.Counterparty {
			replayDiverged(rec, fmt.Sprintf("genesis token %s, ledger is %s", rec.Counterparty, s.token.Addr()))
		}
		s.guard.Restore(rec.Actor, false)

	case domain.KindFunded:
		s.token.Token().Mint(rec.Actor, parseAmount(rec.Amount))
		s.bank.Mint(rec.Actor, parseAmount(rec.Value))

	case domain.KindBought:
		paid := parseAmount(rec.Value)
		if err := s.bank.Transfer(rec.Actor, s.desk.Addr(), paid); err != nil {
			replayDiverged(rec, err.Error())
		}
		rcpt, err := s.desk.Buy(rec.Actor, paid, nil)
		if err != nil {
			replayDiverged(rec, err.Error())
		}
		if rcpt.Amount.Dec() != rec.Amount {
			replayDiverged(rec, fmt.Sprintf("bought %s tokens, journal says %s", rcpt.Amount.Dec(), rec.Amount))
		}

	case domain.KindSold:
		rcpt, err := s.desk.Sell(rec.Actor, parseAmount(rec.Amount), nil)
		if err != nil {
			replayDiverged(rec, err.Error())
		}
		if rcpt.Value.Dec() != rec.Value {
			replayDiverged(rec, fmt.Sprintf("paid out %s wei, journal says %s", rcpt.Value.Dec(), rec.Value))
		}

	case domain.KindApproved:
		if err := s.token.Approve(rec.Actor, s.desk.Addr(), parseAmount(rec.Amount)); err != nil {
			replayDiverged(rec, err.Error())
		}

	case domain.KindPriceChanged:
		if err := s.bank.Transfer(rec.Actor, s.desk.Addr(), parseAmount(rec.Value)); err != nil {
			replayDiverged(rec, err.Error())
		}
		rcpt, err := s.desk.AdjustPrices(rec.Actor, parseAmount(rec.BuyCost), parseAmount(rec.SellValue))
		if err != nil {
			replayDiverged(rec, err.Error())
		}
		if rcpt.BuyCost.Dec() != rec.BuyCost || rcpt.SellValue.Dec() != rec.SellValue {
			replayDiverged(rec, "effective prices diverged")
		}

	case domain.KindCashedOut:
		rcpt, err := s.desk.Cashout(rec.Actor)
		if err != nil {
			replayDiverged(rec, err.Error())
		}
		if rcpt.Value.Dec() != rec.Value {
			replayDiverged(rec, fmt.Sprintf("cashed out %s wei, journal says %s", rcpt.Value.Dec(), rec.Value))
		}

	case domain.KindPaused:
		if err := s.guard.Pause(rec.Actor); err != nil {
			replayDiverged(rec, err.Error())
		}

	case domain.KindUnpaused:
		if err := s.guard.Unpause(rec.Actor); err != nil {
			replayDiverged(rec, err.Error())
		}

	case domain.KindClosed:
		if _, err := s.desk.Close(rec.Actor); err != nil {
			replayDiverged(rec, err.Error())
		}

	case domain.KindTokenRescued:
		// The stray ledger lives outside the journaled system; the
		// record is audit-only and replays as a no-op.

	case domain.KindOwnerOffered:
		if err := s.guard.TransferOwnership(rec.Actor, rec.Counterparty); err != nil {
			replayDiverged(rec, err.Error())
		}

	case domain.KindOwnerAccepted:
		if err := s.guard.AcceptOwnership(rec.Actor); err != nil {
			replayDiverged(rec, err.Error())
		}

	default:
		panic(fmt.Sprintf("REPLAY_UNKNOWN_KIND: seq %d kind %q", rec.Seq, rec.Kind))
	}
}

func replayDiverged(rec *domain.TradeRecord, detail string) {
	panic(fmt.Sprintf("REPLAY_DIVERGENCE: seq %d (%s): %s", rec.Seq, rec.Kind, detail))
}

func parseAmount(s string) *uint256.Int {
	if s == "" {
		return new(uint256.Int)
	}
	x, err := uint256.FromDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("REPLAY_BAD_AMOUNT: %q: %v", s, err))
	}
	return x
}
