package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"tokendesk/internal/access"
	"tokendesk/internal/domain"
	"tokendesk/internal/event"
	"tokendesk/internal/infra"
	"tokendesk/internal/infra/storage"
	"tokendesk/internal/ledger"
)

// Sequencer is the single-threaded command processor: the host shell
// replicating the original execution environment's guarantees. Every
// public operation ships a command through the inbox; the loop executes
// it atomically against the desk and ledgers, assigns a monotonic
// sequence, journals the outcome and fans out the audit event.
type Sequencer struct {
	inbox   chan *command
	desk    *domain.Desk
	token   *ledger.Safe
	bank    *ledger.Bank
	guard   *access.Guard
	journal *storage.Journal
	metrics *infra.Metrics
	nextSeq uint64

	// Boundary: notifies read models and the feed of committed commands.
	onCommit func(event.Event, domain.DeskStatus)

	mu sync.RWMutex // guards external status reads; the loop is the only writer
}

// Deps bundles the sequencer's collaborators. Journal and Metrics may be
// nil (tests run without persistence or scraping).
type Deps struct {
	Desk    *domain.Desk
	Token   *ledger.Safe
	Bank    *ledger.Bank
	Guard   *access.Guard
	Journal *storage.Journal
	Metrics *infra.Metrics
}

// NewSequencer creates a sequencer with the given inbox capacity.
func NewSequencer(inboxSize int, deps Deps, onCommit func(event.Event, domain.DeskStatus)) *Sequencer {
	return &Sequencer{
		inbox:    make(chan *command, inboxSize),
		desk:     deps.Desk,
		token:    deps.Token,
		bank:     deps.Bank,
		guard:    deps.Guard,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		nextSeq:  1,
		onCommit: onCommit,
	}
}

// Run starts the command loop. This MUST be run in a single goroutine.
// A panic (invariant violation, persistence failure) dumps state for
// post-mortem and halts: continuing with corrupt accounting is worse
// than stopping.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started (single-writer hotpath)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case cmd := <-s.inbox:
			s.process(cmd)
		}
	}
}

func (s *Sequencer) process(cmd *command) {
	s.mu.Lock()
	receipt, err := s.apply(cmd)
	if err == nil {
		s.commit(cmd, receipt)
	}
	s.mu.Unlock()

	if err != nil {
		if s.metrics != nil {
			s.metrics.CommandFailed(cmd.kind, domain.FailureReason(err))
		}
		slog.Debug("Command failed", slog.String("kind", cmd.kind),
			slog.String("caller", cmd.caller), slog.Any("error", err))
	}
	cmd.reply <- result{receipt: receipt, err: err}
}

// apply executes one command against the desk. Attached wei is banked
// first and refunded when the operation fails, mirroring how the chain
// moves a call's value before the callee runs and unwinds on revert.
func (s *Sequencer) apply(cmd *command) (*domain.Receipt, error) {
	// Terminal state: after close nothing runs, pause state notwithstanding.
	if s.desk.Closed() {
		return nil, domain.ErrClosed
	}

	switch cmd.kind {
	case cmdBuy, cmdReceive:
		if err := s.bank.Transfer(cmd.caller, s.desk.Addr(), cmd.value); err != nil {
			return nil, err
		}
		rcpt, err := s.desk.Buy(cmd.caller, cmd.value, cmd.bound)
		if err != nil {
			s.refund(cmd.caller, cmd.value)
			return nil, err
		}
		return rcpt, nil

	case cmdSell:
		return s.desk.Sell(cmd.caller, cmd.amount, cmd.bound)

	case cmdApprove:
		if err := s.token.Approve(cmd.caller, s.desk.Addr(), cmd.amount); err != nil {
			return nil, err
		}
		return &domain.Receipt{
			Kind:   domain.KindApproved,
			Actor:  cmd.caller,
			Party:  s.desk.Addr(),
			Amount: new(uint256.Int).Set(cmd.amount),
		}, nil

	case cmdCashout:
		return s.desk.Cashout(cmd.caller)

	case cmdAdjust:
		if err := s.bank.Transfer(cmd.caller, s.desk.Addr(), cmd.value); err != nil {
			return nil, err
		}
		rcpt, err := s.desk.AdjustPrices(cmd.caller, cmd.buyCost, cmd.sellValue)
		if err != nil {
			s.refund(cmd.caller, cmd.value)
			return nil, err
		}
		// The top-up rides along so replay can re-bank it.
		rcpt.Value = new(uint256.Int).Set(cmd.value)
		return rcpt, nil

	case cmdPause:
		if err := s.guard.Pause(cmd.caller); err != nil {
			return nil, err
		}
		return &domain.Receipt{Kind: domain.KindPaused, Actor: cmd.caller}, nil

	case cmdUnpause:
		if err := s.guard.Unpause(cmd.caller); err != nil {
			return nil, err
		}
		return &domain.Receipt{Kind: domain.KindUnpaused, Actor: cmd.caller}, nil

	case cmdClose:
		return s.desk.Close(cmd.caller)

	case cmdRescue:
		return s.desk.RescueToken(cmd.caller, cmd.stray, cmd.amount)

	case cmdOfferOwner:
		if err := s.guard.TransferOwnership(cmd.caller, cmd.party); err != nil {
			return nil, err
		}
		return &domain.Receipt{Kind: domain.KindOwnerOffered, Actor: cmd.caller, Party: cmd.party}, nil

	case cmdAcceptOwner:
		if err := s.guard.AcceptOwnership(cmd.caller); err != nil {
			return nil, err
		}
		return &domain.Receipt{Kind: domain.KindOwnerAccepted, Actor: cmd.caller}, nil

	default:
		panic(fmt.Sprintf("UNKNOWN_COMMAND: %s", cmd.kind))
	}
}

// refund returns attached wei after a failed operation. The wei was
// banked moments ago in the same loop iteration, so a refusal means the
// host's own accounting broke.
func (s *Sequencer) refund(to string, amount *uint256.Int) {
	if err := s.bank.Transfer(s.desk.Addr(), to, amount); err != nil {
		panic(fmt.Sprintf("REFUND_FAILED: %s wei to %s: %v", amount.Dec(), to, err))
	}
}

// commit journals the receipt, advances the sequence and fans out the
// audit event. Journal-first: a record that cannot be persisted halts
// the loop before the command is acknowledged.
func (s *Sequencer) commit(cmd *command, rcpt *domain.Receipt) {
	seq := s.nextSeq
	id := uuid.NewString()
	ts := time.Now().UnixMicro()

	if s.journal != nil {
		rec := &domain.TradeRecord{
			EventID:      id,
			Seq:          seq,
			Kind:         rcpt.Kind,
			Actor:        rcpt.Actor,
			Counterparty: rcpt.Party,
			Amount:       decOrEmpty(rcpt.Amount),
			Value:        decOrEmpty(rcpt.Value),
			BuyCost:      decOrEmpty(rcpt.BuyCost),
			SellValue:    decOrEmpty(rcpt.SellValue),
		}
		if err := s.journal.Append(context.Background(), rec); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}
	s.nextSeq++

	if s.metrics != nil {
		s.metrics.CommandOK(cmd.kind)
		switch rcpt.Kind {
		case domain.KindBought:
			s.metrics.AddTokensSold(rcpt.Amount)
		case domain.KindSold:
			s.metrics.AddTokensBoughtBack(rcpt.Amount)
		}
	}

	if s.onCommit != nil {
		ev := buildEvent(rcpt, id, seq, ts)
		st := s.desk.Status()
		st.LastSeq = seq
		s.onCommit(ev, st)
		releaseEvent(ev)
	}
}

func buildEvent(rcpt *domain.Receipt, id string, seq uint64, ts int64) event.Event {
	base := event.BaseEvent{ID: id, Seq: seq, Kind: rcpt.Kind, Ts: ts}

	switch rcpt.Kind {
	case domain.KindBought:
		ev := event.AcquireBoughtEvent()
		ev.BaseEvent = base
		ev.Buyer = rcpt.Actor
		ev.BuyCost = decOrEmpty(rcpt.BuyCost)
		ev.Amount = decOrEmpty(rcpt.Amount)
		ev.Paid = decOrEmpty(rcpt.Value)
		return ev
	case domain.KindSold:
		ev := event.AcquireSoldEvent()
		ev.BaseEvent = base
		ev.Seller = rcpt.Actor
		ev.SellValue = decOrEmpty(rcpt.SellValue)
		ev.Amount = decOrEmpty(rcpt.Amount)
		ev.Value = decOrEmpty(rcpt.Value)
		return ev
	case domain.KindPriceChanged:
		return &event.PriceChangedEvent{
			BaseEvent:    base,
			NewBuyCost:   decOrEmpty(rcpt.BuyCost),
			NewSellValue: decOrEmpty(rcpt.SellValue),
		}
	default:
		return &event.LifecycleEvent{
			BaseEvent: base,
			Actor:     rcpt.Actor,
			Party:     rcpt.Party,
			Amount:    decOrEmpty(rcpt.Amount),
			Value:     decOrEmpty(rcpt.Value),
		}
	}
}

// releaseEvent returns pooled events once fan-out is done. Subscribers
// must not retain the event past the callback.
func releaseEvent(ev event.Event) {
	switch e := ev.(type) {
	case *event.BoughtEvent:
		event.ReleaseBoughtEvent(e)
	case *event.SoldEvent:
		event.ReleaseSoldEvent(e)
	}
}

func decOrEmpty(x *uint256.Int) string {
	if x == nil {
		return ""
	}
	return x.Dec()
}

// send ships a command and waits for its result.
func (s *Sequencer) send(ctx context.Context, cmd *command) (*domain.Receipt, error) {
	select {
	case s.inbox <- cmd:
	case <-ctx.Done():
		releaseCommand(cmd)
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		releaseCommand(cmd)
		return res.receipt, res.err
	case <-ctx.Done():
		// The command may still execute; the envelope stays out of the
		// pool since the loop will use its reply channel.
		return nil, ctx.Err()
	}
}

// Buy settles a purchase of paidWei * buyCost tokens for the buyer.
func (s *Sequencer) Buy(ctx context.Context, buyer string, paidWei, minTokens *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdBuy, buyer)
	cmd.value = orZero(paidWei)
	cmd.bound = minTokens
	return s.send(ctx, cmd)
}

// ReceiveCurrency is the explicit rendition of the currency-only entry
// point: a buy with no slippage bound.
func (s *Sequencer) ReceiveCurrency(ctx context.Context, buyer string, paidWei *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdReceive, buyer)
	cmd.value = orZero(paidWei)
	return s.send(ctx, cmd)
}

// Sell settles a buyback of amount tokens from the seller.
func (s *Sequencer) Sell(ctx context.Context, seller string, amount, weiExpected *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdSell, seller)
	cmd.amount = orZero(amount)
	cmd.bound = weiExpected
	return s.send(ctx, cmd)
}

// Approve authorizes the desk to pull amount tokens from the holder.
func (s *Sequencer) Approve(ctx context.Context, holder string, amount *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdApprove, holder)
	cmd.amount = orZero(amount)
	return s.send(ctx, cmd)
}

// Cashout pays the owner the surplus wei.
func (s *Sequencer) Cashout(ctx context.Context, caller string) (*domain.Receipt, error) {
	return s.send(ctx, acquireCommand(cmdCashout, caller))
}

// AdjustPrices replaces the price ratios; zero keeps the current value.
// topUpWei is banked to the desk before the check and refunded on failure.
func (s *Sequencer) AdjustPrices(ctx context.Context, caller string, newBuyCost, newSellValue, topUpWei *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdAdjust, caller)
	cmd.buyCost = newBuyCost
	cmd.sellValue = newSellValue
	cmd.value = orZero(topUpWei)
	return s.send(ctx, cmd)
}

// Pause suspends trading.
func (s *Sequencer) Pause(ctx context.Context, caller string) (*domain.Receipt, error) {
	return s.send(ctx, acquireCommand(cmdPause, caller))
}

// Unpause resumes trading.
func (s *Sequencer) Unpause(ctx context.Context, caller string) (*domain.Receipt, error) {
	return s.send(ctx, acquireCommand(cmdUnpause, caller))
}

// Close terminally shuts the desk.
func (s *Sequencer) Close(ctx context.Context, caller string) (*domain.Receipt, error) {
	return s.send(ctx, acquireCommand(cmdClose, caller))
}

// RescueToken moves a stray token's balance to the owner.
func (s *Sequencer) RescueToken(ctx context.Context, caller string, stray domain.TokenLedger, amount *uint256.Int) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdRescue, caller)
	cmd.stray = stray
	cmd.amount = orZero(amount)
	return s.send(ctx, cmd)
}

// TransferOwnership opens an ownership offer to nominee.
func (s *Sequencer) TransferOwnership(ctx context.Context, caller, nominee string) (*domain.Receipt, error) {
	cmd := acquireCommand(cmdOfferOwner, caller)
	cmd.party = nominee
	return s.send(ctx, cmd)
}

// AcceptOwnership completes an open ownership offer.
func (s *Sequencer) AcceptOwnership(ctx context.Context, caller string) (*domain.Receipt, error) {
	return s.send(ctx, acquireCommand(cmdAcceptOwner, caller))
}

// Status returns a snapshot of the desk (external read).
func (s *Sequencer) Status() domain.DeskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.desk.Status()
	st.LastSeq = s.nextSeq - 1
	return st
}

// DumpState writes the sequencer state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq uint64            `json:"next_seq"`
		Desk    domain.DeskStatus `json:"desk"`
	}{
		NextSeq: s.nextSeq,
		Desk:    s.desk.Status(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
