// Package sim generates organic-looking desk traffic for soak tests
// and demos: a handful of policy-driven traders buying and selling
// against the live sequencer.
package sim

import (
	"context"
	"log/slog"
	"time"

	"tokendesk/internal/engine"
	"tokendesk/internal/ledger"
)

// Trader binds one account to its policy.
type Trader struct {
	Addr   string
	Policy Policy
}

// Driver ticks every trader's policy at a fixed cadence and ships the
// resulting commands through the sequencer. Rejected commands are
// expected traffic (broke traders, inventory limits) and only logged
// at debug.
type Driver struct {
	seq      *engine.Sequencer
	token    *ledger.Safe
	bank     *ledger.Bank
	deskAddr string
	traders  []Trader
	interval time.Duration
}

// NewDriver wires a driver to the live sequencer and ledgers.
func NewDriver(seq *engine.Sequencer, token *ledger.Safe, bank *ledger.Bank, deskAddr string, traders []Trader, interval time.Duration) *Driver {
	return &Driver{
		seq:      seq,
		token:    token,
		bank:     bank,
		deskAddr: deskAddr,
		traders:  traders,
		interval: interval,
	}
}

// Run ticks until the context ends. Call in its own goroutine.
func (d *Driver) Run(ctx context.Context) {
	slog.Info("Sim driver started",
		slog.Int("traders", len(d.traders)), slog.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sim driver stopping...")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Driver) tick(ctx context.Context) {
	st := d.seq.Status()
	for i := range d.traders {
		tr := &d.traders[i]
		w := Wallet{
			Addr:     tr.Addr,
			Tokens:   d.token.BalanceOf(tr.Addr),
			Wei:      d.bank.BalanceOf(tr.Addr),
			Approved: d.token.Allowance(tr.Addr, d.deskAddr),
		}

		act := tr.Policy.NextAction(st, w)
		if act.Type == ActionHold {
			continue
		}
		if err := d.dispatch(ctx, tr.Addr, act); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("Sim action rejected",
				slog.String("trader", tr.Addr),
				slog.String("action", act.Type.String()),
				slog.Any("error", err))
		}
	}
}

func (d *Driver) dispatch(ctx context.Context, addr string, act Action) error {
	switch act.Type {
	case ActionBuy:
		_, err := d.seq.Buy(ctx, addr, act.Amount, nil)
		return err
	case ActionSell:
		_, err := d.seq.Sell(ctx, addr, act.Amount, nil)
		return err
	case ActionApprove:
		_, err := d.seq.Approve(ctx, addr, act.Amount)
		return err
	default:
		return nil
	}
}
