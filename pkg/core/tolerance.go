package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tolerance decides whether an experimental mass matches a theoretical one.
type Tolerance interface {
	Within(experimental, theoretical float64) bool
	Minimum(mass float64) float64
	Maximum(mass float64) float64
	Value() float64
	String() string
}

// PpmTolerance is a relative tolerance in parts per million of the theoretical mass.
type PpmTolerance float64

func (t PpmTolerance) Within(experimental, theoretical float64) bool {
	return math.Abs((experimental-theoretical)/theoretical*1e6) <= float64(t)
}

func (t PpmTolerance) Minimum(mass float64) float64 { return mass * (1 - float64(t)/1e6) }
func (t PpmTolerance) Maximum(mass float64) float64 { return mass * (1 + float64(t)/1e6) }
func (t PpmTolerance) Value() float64               { return float64(t) }
func (t PpmTolerance) String() string               { return fmt.Sprintf("±%g PPM", float64(t)) }

// AbsoluteTolerance is a tolerance in Daltons.
type AbsoluteTolerance float64

func (t AbsoluteTolerance) Within(experimental, theoretical float64) bool {
	return math.Abs(experimental-theoretical) <= float64(t)
}

func (t AbsoluteTolerance) Minimum(mass float64) float64 { return mass - float64(t) }
func (t AbsoluteTolerance) Maximum(mass float64) float64 { return mass + float64(t) }
func (t AbsoluteTolerance) Value() float64               { return float64(t) }
func (t AbsoluteTolerance) String() string               { return fmt.Sprintf("±%g Absolute", float64(t)) }

// ParseTolerance parses strings such as "20 ppm", "10ppm", "0.02 Da" or "0.5 Absolute".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "±"))
	lower := strings.ToLower(s)

	var unit string
	for _, u := range []string{"ppm", "da", "absolute"} {
		if strings.HasSuffix(lower, u) {
			unit = u
			s = strings.TrimSpace(s[:len(s)-len(u)])
			break
		}
	}
	if unit == "" {
		return nil, fmt.Errorf("tolerance %q has no unit, expected ppm or Da", s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid tolerance value %q: %w", s, err)
	}
	if v < 0 || math.IsNaN(v) {
		return nil, fmt.Errorf("tolerance must be non-negative, got %v", v)
	}

	if unit == "ppm" {
		return PpmTolerance(v), nil
	}
	return AbsoluteTolerance(v), nil
}
