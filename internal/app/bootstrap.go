// Package app wires the desk system together: config, journal, ledgers,
// sequencer, read model and feed. Bootstrap owns the cold-start decision
// (fresh genesis vs journal replay); main only starts the loops.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/holiman/uint256"

	"tokendesk/internal/access"
	"tokendesk/internal/domain"
	"tokendesk/internal/engine"
	"tokendesk/internal/event"
	"tokendesk/internal/infra"
	"tokendesk/internal/infra/storage"
	"tokendesk/internal/infra/stream"
	"tokendesk/internal/ledger"
	"tokendesk/internal/service"
	"tokendesk/internal/sim"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Journal   *storage.Journal
	Metrics   *infra.Metrics
	Hub       *stream.Hub
	Service   *service.DeskService
	Sequencer *engine.Sequencer
	Driver    *sim.Driver // nil unless sim.enabled
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: it loads configuration,
// opens the journal and rebuilds the desk state (genesis on a fresh
// journal, replay on a warm one). After it returns, the sequencer is
// primed and ready to Run.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Token Desk...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Open Journal (the write-ahead log)
	journal, err := storage.NewJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	b.Journal = journal
	recs, err := journal.All()
	if err != nil {
		return err
	}
	slog.Info("✅ Journal opened",
		slog.String("path", cfg.Journal.Path), slog.Int("records", len(recs)))

	// 4. Ledgers, guard and desk. On a warm start the journal's genesis
	// record is authoritative for the opening prices: the config may have
	// drifted since the desk was created.
	token := ledger.NewSafe(ledger.NewToken(
		cfg.Token.Address, cfg.Token.Name, cfg.Token.Symbol, cfg.Token.Decimals))
	bank := ledger.NewBank()
	guard := access.NewGuard(cfg.Desk.Owner)

	buyCost := infra.MustAmount(cfg.Desk.BuyCost)
	sellValue := infra.MustAmount(cfg.Desk.SellValue)
	if len(recs) > 0 {
		g := &recs[0]
		if g.Kind != domain.KindGenesis {
			return fmt.Errorf("journal does not start with a genesis record (found %q)", g.Kind)
		}
		if g.Counterparty != cfg.Token.Address {
			return fmt.Errorf("journal belongs to token %s, config says %s",
				g.Counterparty, cfg.Token.Address)
		}
		if buyCost, err = uint256.FromDecimal(g.BuyCost); err != nil {
			return fmt.Errorf("journal genesis buy cost: %w", err)
		}
		if sellValue, err = uint256.FromDecimal(g.SellValue); err != nil {
			return fmt.Errorf("journal genesis sell value: %w", err)
		}
	}

	desk, err := domain.NewDesk(cfg.Desk.Address, token, bank, guard, buyCost, sellValue)
	if err != nil {
		return err
	}

	// 5. Observability and read model
	metrics := infra.NewMetrics()
	b.Metrics = metrics

	watch := domain.NewSolvencyWatch(cfg.Solvency.MinCoverageBps)
	svc := service.NewDeskService(journal, watch, metrics, cfg.Token.Symbol, cfg.Token.Decimals)
	b.Service = svc

	hub := stream.NewHub(metrics)
	b.Hub = hub

	// 6. Sequencer. The commit callback runs on the loop goroutine;
	// Broadcast marshals the event before it returns to its pool.
	event.Warmup()
	seq := engine.NewSequencer(cfg.Desk.InboxSize, engine.Deps{
		Desk:    desk,
		Token:   token,
		Bank:    bank,
		Guard:   guard,
		Journal: journal,
		Metrics: metrics,
	}, func(ev event.Event, st domain.DeskStatus) {
		svc.Apply(ev, st)
		hub.Broadcast(ev)
	})
	b.Sequencer = seq

	// 7. Genesis or replay
	if len(recs) == 0 {
		accounts := make([]engine.GenesisAccount, 0, len(cfg.Genesis.Accounts))
		for _, acct := range cfg.Genesis.Accounts {
			accounts = append(accounts, engine.GenesisAccount{
				Addr:   acct.Addr,
				Tokens: infra.MustAmount(acct.Tokens),
				Wei:    infra.MustAmount(acct.Wei),
			})
		}
		if err := seq.InitGenesis(ctx, accounts); err != nil {
			return err
		}
		slog.Info("✅ Genesis initialized", slog.Int("accounts", len(accounts)))
	} else {
		seq.Replay(recs)
		slog.Info("✅ Journal replayed",
			slog.Int("records", len(recs)), slog.Uint64("last_seq", seq.Status().LastSeq))
	}
	svc.Prime(seq.Status())

	// 8. Sim traders (optional)
	if cfg.Sim.Enabled {
		b.Driver = buildSimDriver(cfg, seq, token, bank)
		slog.Info("✅ Sim traders ready", slog.Int("traders", cfg.Sim.Traders))
	}

	return nil
}

// buildSimDriver assembles the random-trader pool. Trader addresses are
// trader-1..trader-N; fund them in genesis.accounts or they will sit out
// every round broke.
func buildSimDriver(cfg *infra.Config, seq *engine.Sequencer, token *ledger.Safe, bank *ledger.Bank) *sim.Driver {
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	maxSpend := infra.MustAmount(cfg.Sim.MaxSpendWei)
	spend := uint64(math.MaxUint64)
	if maxSpend.IsUint64() {
		spend = maxSpend.Uint64()
	}

	traders := make([]sim.Trader, 0, cfg.Sim.Traders)
	for i := 0; i < cfg.Sim.Traders; i++ {
		traders = append(traders, sim.Trader{
			Addr:   fmt.Sprintf("trader-%d", i+1),
			Policy: sim.NewRandomTrader(seed+int64(i), spend),
		})
	}

	interval := time.Duration(cfg.Sim.IntervalMS) * time.Millisecond
	return sim.NewDriver(seq, token, bank, cfg.Desk.Address, traders, interval)
}
