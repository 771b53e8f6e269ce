package acceptor

import (
	"math"
	"testing"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text       string
		wantName   string
		wantNotch  int
		wantString string
		wantErr    bool
	}{
		{"3mm dot 5 ppm 0,1.0029,2.0052", "3mm", 3, "3mm dot 5 ppm 0,1.0029,2.0052", false},
		{"wide dot 0.5 da 0,57.02", "wide", 2, "wide dot 0.5 da 0,57.02", false},
		{"mods interval [-187;Infinity],[1;2]", "mods", 1, "mods interval [-187;Infinity],[1;2]", false},
		{"all OpenSearch", "all", 1, "all OpenSearch", false},
		{"narrow ppmAroundZero 5", "narrow", 1, "narrow ppmAroundZero 5", false},
		{"coarse daltonsAroundZero 0.5", "coarse", 1, "coarse daltonsAroundZero 0.5", false},
		{"x dot 5 ppm", "", 0, "", true},
		{"x dot 5 furlongs 0", "", 0, "", true},
		{"x interval [1,2]", "", 0, "", true},
		{"x ppmAroundZero -3", "", 0, "", true},
		{"x sideways 1", "", 0, "", true},
		{"lonely", "", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Name() != tt.wantName || got.NumNotches() != tt.wantNotch {
				t.Errorf("Parse() = %s with %d notches", got.Name(), got.NumNotches())
			}
			if got.String() != tt.wantString {
				t.Errorf("String() = %q, want %q", got.String(), tt.wantString)
			}
			if _, err := Parse(got.String()); err != nil {
				t.Errorf("Parse(String()) error = %v", err)
			}
		})
	}
}

func TestNewKinds(t *testing.T) {
	tol := core.PpmTolerance(5)
	tests := []struct {
		kind    Kind
		notches int
		// observed mass accepted against theoretical 1000
		observed float64
	}{
		{Exact, 1, 1000.001},
		{OneMM, 2, 1000 + core.C13MinusC12},
		{TwoMM, 3, 1000 + 2*core.C13MinusC12},
		{ThreeMM, 4, 1000 + 3*core.C13MinusC12},
		{PlusOrMinusThreeMM, 7, 1000 - 3*core.C13MinusC12},
		{ModOpen, 1, 900},
		{OpenSearch, 1, 12345},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			a, err := New(tt.kind, tol, "")
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if a.NumNotches() != tt.notches {
				t.Errorf("NumNotches() = %d, want %d", a.NumNotches(), tt.notches)
			}
			if a.Accepts(tt.observed, 1000) < 0 {
				t.Errorf("Accepts(%v, 1000) rejected", tt.observed)
			}
		})
	}

	if a, _ := New(ModOpen, tol, ""); a.Accepts(800, 1000) >= 0 {
		t.Error("ModOpen accepted a loss larger than 187 Da")
	}
	if _, err := New(Custom, tol, "bad"); err == nil {
		t.Error("New(Custom) expected error for malformed definition")
	}
	a, err := New(Custom, tol, "c dot 10 ppm 0,15.9949")
	if err != nil || a.Accepts(1015.9949, 1000) != 1 {
		t.Errorf("New(Custom) = %v, %v", a, err)
	}
}

func TestParseKind(t *testing.T) {
	for i, name := range kindNames {
		k, err := ParseKind(name)
		if err != nil || int(k) != i {
			t.Errorf("ParseKind(%q) = %v, %v", name, k, err)
		}
	}
	if _, err := ParseKind("weird"); err == nil {
		t.Error("ParseKind() expected error")
	}
	if !math.IsInf(mustParseFloat(t, "Infinity"), 1) {
		t.Error("parseFloat(Infinity) not +Inf")
	}
}

func mustParseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := parseFloat(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
