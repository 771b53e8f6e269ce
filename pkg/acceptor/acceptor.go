// Package acceptor decides whether an observed precursor mass is compatible with a
// theoretical peptide mass, and under which notch (mass offset hypothesis).
package acceptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// Interval is a closed mass range tagged with the notch that produced it.
type Interval struct {
	Min, Max float64
	Notch    int
}

// Contains reports whether x lies in [Min, Max].
func (i Interval) Contains(x float64) bool {
	return x >= i.Min && x <= i.Max
}

// Finite reports whether both bounds are finite.
func (i Interval) Finite() bool {
	return !math.IsInf(i.Min, 0) && !math.IsInf(i.Max, 0)
}

// MassDiffAcceptor maps (observed, theoretical) mass pairs to notches. Accepts returns -1
// when the pair is rejected. FromTheoretical and FromObserved describe the same relation
// from either side: Accepts(o, t) == j iff o lies in an interval of FromTheoretical(t)
// with notch j iff t lies in an interval of FromObserved(o) with notch j.
type MassDiffAcceptor interface {
	Name() string
	NumNotches() int
	Accepts(observed, theoretical float64) int
	FromTheoretical(theoretical float64) []Interval
	FromObserved(observed float64) []Interval
	String() string
}

// window returns the range of masses within tol of x. Ppm windows are anchored on the
// larger of the two masses being compared, so they are symmetric in both directions.
func window(tol core.Tolerance, x float64) (float64, float64) {
	if ppm, ok := tol.(core.PpmTolerance); ok {
		eps := float64(ppm) / 1e6
		return x * (1 - eps), x / (1 - eps)
	}
	return tol.Minimum(x), tol.Maximum(x)
}

// Dot accepts masses within a tolerance of a fixed set of offsets. Notch j corresponds to
// observed = theoretical + Shifts[j].
type Dot struct {
	name      string
	Shifts    []float64
	Tolerance core.Tolerance
}

// NewDot creates a dot acceptor. shifts must not be empty.
func NewDot(name string, shifts []float64, tol core.Tolerance) (*Dot, error) {
	if len(shifts) == 0 {
		return nil, fmt.Errorf("dot acceptor %s needs at least one mass shift", name)
	}
	if tol == nil {
		return nil, fmt.Errorf("dot acceptor %s needs a tolerance", name)
	}
	return &Dot{name: name, Shifts: shifts, Tolerance: tol}, nil
}

// NewExact accepts only a zero mass difference within tol.
func NewExact(name string, tol core.Tolerance) *Dot {
	return &Dot{name: name, Shifts: []float64{0}, Tolerance: tol}
}

func (d *Dot) Name() string    { return d.name }
func (d *Dot) NumNotches() int { return len(d.Shifts) }

func (d *Dot) Accepts(observed, theoretical float64) int {
	for j, shift := range d.Shifts {
		lo, hi := window(d.Tolerance, theoretical+shift)
		if observed >= lo && observed <= hi {
			return j
		}
	}
	return -1
}

func (d *Dot) FromTheoretical(theoretical float64) []Interval {
	out := make([]Interval, len(d.Shifts))
	for j, shift := range d.Shifts {
		lo, hi := window(d.Tolerance, theoretical+shift)
		out[j] = Interval{Min: lo, Max: hi, Notch: j}
	}
	return out
}

func (d *Dot) FromObserved(observed float64) []Interval {
	lo, hi := window(d.Tolerance, observed)
	out := make([]Interval, len(d.Shifts))
	for j, shift := range d.Shifts {
		out[j] = Interval{Min: lo - shift, Max: hi - shift, Notch: j}
	}
	return out
}

func (d *Dot) String() string {
	if len(d.Shifts) == 1 && d.Shifts[0] == 0 {
		if ppm, ok := d.Tolerance.(core.PpmTolerance); ok {
			return fmt.Sprintf("%s ppmAroundZero %s", d.name, formatFloat(float64(ppm)))
		}
		return fmt.Sprintf("%s daltonsAroundZero %s", d.name, formatFloat(d.Tolerance.Value()))
	}
	unit := "da"
	if _, ok := d.Tolerance.(core.PpmTolerance); ok {
		unit = "ppm"
	}
	shifts := make([]string, len(d.Shifts))
	for i, s := range d.Shifts {
		shifts[i] = formatFloat(s)
	}
	return fmt.Sprintf("%s dot %s %s %s", d.name, formatFloat(d.Tolerance.Value()), unit, strings.Join(shifts, ","))
}

// IntervalAcceptor accepts any mass difference observed - theoretical inside one of its
// ranges. All ranges share notch 0.
type IntervalAcceptor struct {
	name   string
	Ranges [][2]float64
}

// NewInterval creates an interval acceptor. Each range must have Min <= Max.
func NewInterval(name string, ranges [][2]float64) (*IntervalAcceptor, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("interval acceptor %s needs at least one range", name)
	}
	for _, r := range ranges {
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) || r[0] > r[1] {
			return nil, fmt.Errorf("interval acceptor %s: invalid range [%v;%v]", name, r[0], r[1])
		}
	}
	return &IntervalAcceptor{name: name, Ranges: ranges}, nil
}

func (a *IntervalAcceptor) Name() string    { return a.name }
func (a *IntervalAcceptor) NumNotches() int { return 1 }

func (a *IntervalAcceptor) Accepts(observed, theoretical float64) int {
	for _, iv := range a.FromTheoretical(theoretical) {
		if iv.Contains(observed) {
			return 0
		}
	}
	return -1
}

func (a *IntervalAcceptor) FromTheoretical(theoretical float64) []Interval {
	out := make([]Interval, len(a.Ranges))
	for i, r := range a.Ranges {
		out[i] = Interval{Min: theoretical + r[0], Max: theoretical + r[1]}
	}
	return out
}

func (a *IntervalAcceptor) FromObserved(observed float64) []Interval {
	out := make([]Interval, len(a.Ranges))
	for i, r := range a.Ranges {
		out[i] = Interval{Min: observed - r[1], Max: observed - r[0]}
	}
	return out
}

func (a *IntervalAcceptor) String() string {
	parts := make([]string, len(a.Ranges))
	for i, r := range a.Ranges {
		parts[i] = fmt.Sprintf("[%s;%s]", formatFloat(r[0]), formatFloat(r[1]))
	}
	return fmt.Sprintf("%s interval %s", a.name, strings.Join(parts, ","))
}

// Open accepts every mass difference under notch 0.
type Open struct {
	name string
}

// NewOpen creates an open acceptor.
func NewOpen(name string) *Open { return &Open{name: name} }

func (o *Open) Name() string                      { return o.name }
func (o *Open) NumNotches() int                   { return 1 }
func (o *Open) Accepts(observed, theo float64) int { return 0 }

func (o *Open) FromTheoretical(float64) []Interval {
	return []Interval{{Min: math.Inf(-1), Max: math.Inf(1)}}
}

func (o *Open) FromObserved(float64) []Interval {
	return []Interval{{Min: math.Inf(-1), Max: math.Inf(1)}}
}

func (o *Open) String() string { return o.name + " OpenSearch" }

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	if math.IsInf(v, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
