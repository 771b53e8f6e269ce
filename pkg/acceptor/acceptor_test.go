package acceptor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

func TestDotNotches(t *testing.T) {
	dot, err := NewDot("test", []float64{0, 1.0029}, core.PpmTolerance(5))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		observed float64
		want     int
	}{
		{"exact", 1000.0, 0},
		{"within ppm", 1000.004, 0},
		{"isotope notch", 1001.0029, 1},
		{"between notches", 1000.5, -1},
		{"outside", 1002.0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dot.Accepts(tt.observed, 1000.0); got != tt.want {
				t.Errorf("Accepts(%v, 1000) = %d, want %d", tt.observed, got, tt.want)
			}
		})
	}

	found := false
	for _, iv := range dot.FromObserved(1001.0029) {
		if iv.Contains(1000.0) {
			if iv.Notch != 1 {
				t.Errorf("FromObserved interval containing 1000 has notch %d, want 1", iv.Notch)
			}
			found = true
		}
	}
	if !found {
		t.Error("FromObserved(1001.0029) does not cover 1000.0")
	}
}

func TestAbsoluteDot(t *testing.T) {
	dot := NewExact("abs", core.AbsoluteTolerance(0.5))
	if got := dot.Accepts(1000.4, 1000); got != 0 {
		t.Errorf("Accepts() = %d, want 0", got)
	}
	if got := dot.Accepts(1000.6, 1000); got != -1 {
		t.Errorf("Accepts() = %d, want -1", got)
	}
	iv := dot.FromTheoretical(1000)[0]
	if iv.Min != 999.5 || iv.Max != 1000.5 {
		t.Errorf("FromTheoretical() = %+v", iv)
	}
}

func TestIntervalAcceptor(t *testing.T) {
	a, err := NewInterval("wide", [][2]float64{{-2, 5}, {100, 101}})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		observed float64
		want     int
	}{
		{1000, 0},
		{998, 0},
		{997.9, -1},
		{1100.5, 0},
		{1050, -1},
	}
	for _, tt := range tests {
		if got := a.Accepts(tt.observed, 1000); got != tt.want {
			t.Errorf("Accepts(%v, 1000) = %d, want %d", tt.observed, got, tt.want)
		}
	}
	if _, err := NewInterval("bad", [][2]float64{{5, 1}}); err == nil {
		t.Error("NewInterval() expected error for inverted range")
	}
}

func TestOpenAcceptsEverything(t *testing.T) {
	o := NewOpen("open")
	if o.Accepts(1, 5000) != 0 || o.NumNotches() != 1 {
		t.Error("open acceptor rejected a pair")
	}
	if iv := o.FromObserved(10)[0]; iv.Finite() {
		t.Errorf("FromObserved() = %+v, want unbounded", iv)
	}
}

// Accepts(o, t) == j must agree with both interval directions.
func TestAcceptorConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ppmDot, _ := NewDot("ppm", []float64{-1.00335, 0, 1.00335, 2.0067}, core.PpmTolerance(10))
	absDot, _ := NewDot("abs", []float64{0, 0.984}, core.AbsoluteTolerance(0.01))
	interval, _ := NewInterval("iv", [][2]float64{{-0.5, 0.5}, {15.99, 16.0}})

	for _, a := range []MassDiffAcceptor{ppmDot, absDot, interval, NewOpen("open")} {
		t.Run(a.Name(), func(t *testing.T) {
			for i := 0; i < 20000; i++ {
				theo := 500 + rng.Float64()*3000
				obs := theo + (rng.Float64()*20 - 2)
				if i%2 == 0 {
					// sample near notch boundaries
					obs = theo + math.Round(rng.Float64()*3)*1.00335 + (rng.Float64()-0.5)*0.08
				}

				got := a.Accepts(obs, theo)
				fromTheo, fromObs := -1, -1
				for _, iv := range a.FromTheoretical(theo) {
					if iv.Contains(obs) {
						fromTheo = iv.Notch
						break
					}
				}
				for _, iv := range a.FromObserved(obs) {
					if iv.Contains(theo) {
						fromObs = iv.Notch
						break
					}
				}
				if got != fromTheo || got != fromObs {
					t.Fatalf("obs=%v theo=%v: Accepts=%d FromTheoretical=%d FromObserved=%d",
						obs, theo, got, fromTheo, fromObs)
				}
			}
		})
	}
}
