package acceptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// Kind selects a predefined acceptor.
type Kind int

const (
	Exact Kind = iota
	OneMM
	TwoMM
	ThreeMM
	PlusOrMinusThreeMM
	ModOpen
	OpenSearch
	Custom
)

var kindNames = []string{"Exact", "OneMM", "TwoMM", "ThreeMM", "PlusOrMinusThreeMM", "ModOpen", "Open", "Custom"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return Exact, fmt.Errorf("unknown mass difference acceptor %q", s)
}

// modOpenLowerBound admits mass losses up to this size in a ModOpen search.
const modOpenLowerBound = -187

// New builds the acceptor for kind using the precursor tolerance. custom holds the text
// definition for Custom and is ignored otherwise.
func New(kind Kind, precursorTol core.Tolerance, custom string) (MassDiffAcceptor, error) {
	isotopes := func(lo, hi int) []float64 {
		var shifts []float64
		for i := lo; i <= hi; i++ {
			shifts = append(shifts, float64(i)*core.C13MinusC12)
		}
		return shifts
	}
	switch kind {
	case Exact:
		if precursorTol == nil {
			return nil, fmt.Errorf("exact acceptor needs a precursor tolerance")
		}
		if _, ok := precursorTol.(core.PpmTolerance); ok {
			return NewExact(fmt.Sprintf("%gppmAroundZero", precursorTol.Value()), precursorTol), nil
		}
		return NewExact(fmt.Sprintf("%gdaltonsAroundZero", precursorTol.Value()), precursorTol), nil
	case OneMM:
		return NewDot("1mm", isotopes(0, 1), precursorTol)
	case TwoMM:
		return NewDot("2mm", isotopes(0, 2), precursorTol)
	case ThreeMM:
		return NewDot("3mm", isotopes(0, 3), precursorTol)
	case PlusOrMinusThreeMM:
		return NewDot("PlusOrMinus3Da", isotopes(-3, 3), precursorTol)
	case ModOpen:
		return NewInterval("-187andUp", [][2]float64{{modOpenLowerBound, math.Inf(1)}})
	case OpenSearch:
		return NewOpen("OpenSearch"), nil
	case Custom:
		return Parse(custom)
	}
	return nil, fmt.Errorf("unknown mass difference acceptor kind %d", int(kind))
}

// Parse reads a custom acceptor definition:
//
//	name dot 5 ppm 0,1.0029
//	name interval [-187;Infinity],[1;2]
//	name OpenSearch
//	name ppmAroundZero 5
//	name daltonsAroundZero 0.5
func Parse(text string) (MassDiffAcceptor, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, fmt.Errorf("cannot parse mass difference acceptor %q", text)
	}
	name, kind, args := fields[0], fields[1], fields[2:]

	switch strings.ToLower(kind) {
	case "dot":
		if len(args) != 3 {
			return nil, fmt.Errorf("dot acceptor %q: expected '<value> <ppm|da> <shifts>'", text)
		}
		tol, err := core.ParseTolerance(args[0] + " " + args[1])
		if err != nil {
			return nil, fmt.Errorf("dot acceptor %q: %w", text, err)
		}
		var shifts []float64
		for _, s := range strings.Split(args[2], ",") {
			v, err := parseFloat(s)
			if err != nil {
				return nil, fmt.Errorf("dot acceptor %q: invalid shift %q: %w", text, s, err)
			}
			shifts = append(shifts, v)
		}
		return NewDot(name, shifts, tol)

	case "interval":
		ranges, err := parseRanges(strings.Join(args, ""))
		if err != nil {
			return nil, fmt.Errorf("interval acceptor %q: %w", text, err)
		}
		return NewInterval(name, ranges)

	case "opensearch":
		return NewOpen(name), nil

	case "ppmaroundzero", "daltonsaroundzero":
		if len(args) != 1 {
			return nil, fmt.Errorf("acceptor %q: expected a single tolerance value", text)
		}
		v, err := parseFloat(args[0])
		if err != nil || v < 0 {
			return nil, fmt.Errorf("acceptor %q: invalid tolerance %q", text, args[0])
		}
		if strings.EqualFold(kind, "ppmAroundZero") {
			return NewExact(name, core.PpmTolerance(v)), nil
		}
		return NewExact(name, core.AbsoluteTolerance(v)), nil
	}
	return nil, fmt.Errorf("unknown mass difference acceptor type %q in %q", kind, text)
}

func parseRanges(s string) ([][2]float64, error) {
	var ranges [][2]float64
	for _, part := range strings.Split(s, "],") {
		part = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(part), "["), "]")
		bounds := strings.Split(part, ";")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid range %q, expected [min;max]", part)
		}
		lo, err := parseFloat(bounds[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseFloat(bounds[1])
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, [2]float64{lo, hi})
	}
	return ranges, nil
}

func parseFloat(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "Infinity", "+Infinity", "∞":
		return math.Inf(1), nil
	case "-Infinity", "-∞":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
