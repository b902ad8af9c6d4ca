package domain

import (
	"math"

	"github.com/holiman/uint256"
)

// SolvencyWatch raises a latched alarm when the wei reserve's coverage of
// the buyback obligation falls below a threshold. Coverage is measured in
// basis points: 10000 means the reserve exactly covers the obligation.
// The alarm fires once on the way down and re-arms once coverage recovers,
// so a persistent breach does not spam the log.
type SolvencyWatch struct {
	MinCoverageBps uint64
	tripped        bool
}

// NewSolvencyWatch creates a watch with the given minimum coverage.
func NewSolvencyWatch(minCoverageBps uint64) *SolvencyWatch {
	return &SolvencyWatch{MinCoverageBps: minCoverageBps}
}

// Tripped reports whether the watch is currently latched.
func (w *SolvencyWatch) Tripped() bool {
	return w.tripped
}

// CoverageBps returns reserve/obligation in basis points, saturating at
// MaxUint64. A zero obligation counts as full coverage.
func CoverageBps(weiReserve, obligation *uint256.Int) uint64 {
	if obligation == nil || obligation.IsZero() {
		return math.MaxUint64
	}
	scaled, overflow := new(uint256.Int).MulOverflow(weiReserve, uint256.NewInt(10000))
	if overflow {
		return math.MaxUint64
	}
	cov := scaled.Div(scaled, obligation)
	if !cov.IsUint64() {
		return math.MaxUint64
	}
	return cov.Uint64()
}

// Check evaluates coverage and reports edge transitions. fired is true
// only when the watch newly latches; recovered only when it releases.
func (w *SolvencyWatch) Check(weiReserve, obligation *uint256.Int) (fired, recovered bool) {
	breached := CoverageBps(weiReserve, obligation) < w.MinCoverageBps
	switch {
	case breached && !w.tripped:
		w.tripped = true
		return true, false
	case !breached && w.tripped:
		w.tripped = false
		return false, true
	default:
		return false, false
	}
}
