package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"tokendesk/internal/domain"
	"tokendesk/internal/event"
	"tokendesk/internal/infra"
	"tokendesk/internal/infra/storage"
	"tokendesk/pkg/safe"
)

// Native currency base-unit scale and display symbol.
const (
	weiDecimals    = 18
	currencySymbol = "ETH"
)

// Beyond 100x coverage the gauge saturates; the exact figure carries no
// operational meaning up there.
const maxCoverageGaugeBps = 1_000_000

// ErrNotPrimed is returned before the service has seen a desk snapshot.
var ErrNotPrimed = errors.New("no desk snapshot yet")

// DeskService is the read model over the sequencer. It caches the
// latest committed snapshot, serves quotes off the cached prices,
// renders display amounts and raises the solvency alarm. Apply runs on
// the sequencer goroutine; everything else may be called from anywhere.
type DeskService struct {
	mu     sync.RWMutex
	status domain.DeskStatus
	ready  bool

	journal *storage.Journal
	watch   *domain.SolvencyWatch
	metrics *infra.Metrics

	symbol   string
	decimals uint8
}

// NewDeskService creates a service. Journal, watch and metrics may each
// be nil; the corresponding surface degrades to a no-op.
func NewDeskService(journal *storage.Journal, watch *domain.SolvencyWatch, metrics *infra.Metrics, tokenSymbol string, tokenDecimals uint8) *DeskService {
	return &DeskService{
		journal:  journal,
		watch:    watch,
		metrics:  metrics,
		symbol:   tokenSymbol,
		decimals: tokenDecimals,
	}
}

// Apply ingests one committed event's snapshot. The event itself is
// pooled and must not be retained; only the snapshot is kept.
func (s *DeskService) Apply(ev event.Event, st domain.DeskStatus) {
	s.apply(st)
}

// Prime seeds the snapshot before the loop starts (post-genesis or
// post-replay state).
func (s *DeskService) Prime(st domain.DeskStatus) {
	s.apply(st)
}

func (s *DeskService) apply(st domain.DeskStatus) {
	reserve := uint256.MustFromDecimal(st.WeiReserve)
	obligation := uint256.MustFromDecimal(st.Obligation)
	bps := domain.CoverageBps(reserve, obligation)

	var fired, recovered bool
	s.mu.Lock()
	s.status = st
	s.ready = true
	if s.watch != nil {
		fired, recovered = s.watch.Check(reserve, obligation)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetCoverageBps(capBps(bps))
	}
	if fired {
		slog.Warn("Solvency coverage below threshold",
			slog.Uint64("coverage_bps", bps),
			slog.Uint64("min_bps", s.watch.MinCoverageBps),
			slog.String("wei_reserve", st.WeiReserve),
			slog.String("obligation", st.Obligation))
	}
	if recovered {
		slog.Info("Solvency coverage recovered", slog.Uint64("coverage_bps", bps))
	}
}

func capBps(bps uint64) uint64 {
	if bps > maxCoverageGaugeBps {
		return maxCoverageGaugeBps
	}
	return bps
}

// Status returns the latest committed snapshot.
func (s *DeskService) Status() (domain.DeskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return domain.DeskStatus{}, ErrNotPrimed
	}
	return s.status, nil
}

// Alarmed reports whether the solvency alarm is currently latched.
func (s *DeskService) Alarmed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch != nil && s.watch.Tripped()
}

func (s *DeskService) prices() (buyCost, sellValue *uint256.Int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, nil, ErrNotPrimed
	}
	return uint256.MustFromDecimal(s.status.BuyCost), uint256.MustFromDecimal(s.status.SellValue), nil
}

// QuoteBuyCost returns the wei needed to purchase amount tokens, rounded
// up so the quoted payment is always sufficient.
func (s *DeskService) QuoteBuyCost(amount *uint256.Int) (*uint256.Int, error) {
	buyCost, _, err := s.prices()
	if err != nil {
		return nil, err
	}
	return safe.CeilDiv(amount, buyCost)
}

// TokensForWei returns the tokens a buy of paidWei settles.
func (s *DeskService) TokensForWei(paidWei *uint256.Int) (*uint256.Int, error) {
	buyCost, _, err := s.prices()
	if err != nil {
		return nil, err
	}
	return safe.Mul(paidWei, buyCost)
}

// QuoteSellValue returns the wei a buyback of amount tokens pays out,
// rounded down.
func (s *DeskService) QuoteSellValue(amount *uint256.Int) (*uint256.Int, error) {
	_, sellValue, err := s.prices()
	if err != nil {
		return nil, err
	}
	return safe.Div(amount, sellValue)
}

// RecentTrades returns the newest journal records, newest first.
func (s *DeskService) RecentTrades(limit int) ([]domain.TradeRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(limit)
}

// TradesByKind returns the newest records of one kind, newest first.
func (s *DeskService) TradesByKind(kind string, limit int) ([]domain.TradeRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ByKind(kind, limit)
}

// DisplayStatus carries the snapshot plus human-readable amounts.
type DisplayStatus struct {
	domain.DeskStatus
	Symbol         string `json:"symbol"`
	TokenReserveUI string `json:"token_reserve_display"`
	WeiReserveUI   string `json:"wei_reserve_display"`
	ObligationUI   string `json:"obligation_display"`
	SurplusUI      string `json:"surplus_display"`
	NetBoughtUI    string `json:"net_bought_display"`
}

// Display renders the latest snapshot with scaled amounts.
func (s *DeskService) Display() (DisplayStatus, error) {
	st, err := s.Status()
	if err != nil {
		return DisplayStatus{}, err
	}
	return DisplayStatus{
		DeskStatus:     st,
		Symbol:         s.symbol,
		TokenReserveUI: s.FormatTokens(st.TokenReserve),
		WeiReserveUI:   s.FormatWei(st.WeiReserve),
		ObligationUI:   s.FormatWei(st.Obligation),
		SurplusUI:      s.FormatWei(st.Surplus),
		NetBoughtUI:    s.FormatTokens(st.NetAmountBought),
	}, nil
}

// FormatTokens renders a base-unit token amount at the token's decimals.
func (s *DeskService) FormatTokens(dec string) string {
	return formatScaled(dec, int32(s.decimals)) + " " + s.symbol
}

// FormatWei renders a wei amount in whole currency units.
func (s *DeskService) FormatWei(dec string) string {
	return formatScaled(dec, weiDecimals) + " " + currencySymbol
}

func formatScaled(dec string, decimals int32) string {
	x, err := uint256.FromDecimal(dec)
	if err != nil {
		return dec
	}
	return decimal.NewFromBigInt(x.ToBig(), -decimals).String()
}

// StatusHandler serves the display snapshot as JSON.
func (s *DeskService) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disp, err := s.Display()
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(disp)
	}
}

// TradesHandler serves recent journal records as JSON (?limit=, max 500).
func (s *DeskService) TradesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		recs, err := s.RecentTrades(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	}
}
