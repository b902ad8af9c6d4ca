package domain

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
)

func TestCoverageBps(t *testing.T) {
	t.Run("zero obligation is full coverage", func(t *testing.T) {
		if got := CoverageBps(u("0"), u("0")); got != math.MaxUint64 {
			t.Errorf("CoverageBps = %d, want MaxUint64", got)
		}
	})

	t.Run("exact coverage is 10000 bps", func(t *testing.T) {
		if got := CoverageBps(u("50"), u("50")); got != 10000 {
			t.Errorf("CoverageBps = %d, want 10000", got)
		}
	})

	t.Run("half coverage is 5000 bps", func(t *testing.T) {
		if got := CoverageBps(u("25"), u("50")); got != 5000 {
			t.Errorf("CoverageBps = %d, want 5000", got)
		}
	})

	t.Run("huge reserve saturates", func(t *testing.T) {
		max := new(uint256.Int)
		max.SetAllOne()
		if got := CoverageBps(max, u("1")); got != math.MaxUint64 {
			t.Errorf("CoverageBps = %d, want MaxUint64", got)
		}
	})
}

func TestSolvencyWatch_Latching(t *testing.T) {
	w := NewSolvencyWatch(10000)

	t.Run("healthy state stays quiet", func(t *testing.T) {
		fired, recovered := w.Check(u("100"), u("50"))
		if fired || recovered {
			t.Error("healthy coverage should not transition")
		}
	})

	t.Run("breach fires once", func(t *testing.T) {
		fired, _ := w.Check(u("40"), u("50"))
		if !fired {
			t.Error("drop below threshold should fire")
		}
		fired, recovered := w.Check(u("30"), u("50"))
		if fired || recovered {
			t.Error("persistent breach must not re-fire")
		}
		if !w.Tripped() {
			t.Error("watch should stay tripped during a breach")
		}
	})

	t.Run("recovery releases and re-arms", func(t *testing.T) {
		_, recovered := w.Check(u("60"), u("50"))
		if !recovered {
			t.Error("return above threshold should report recovery")
		}
		if w.Tripped() {
			t.Error("watch should be released after recovery")
		}
		fired, _ := w.Check(u("10"), u("50"))
		if !fired {
			t.Error("a new breach after recovery should fire again")
		}
	})
}
