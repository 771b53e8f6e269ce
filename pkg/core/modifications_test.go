package core

import (
	"math"
	"strings"
	"testing"
)

func TestLoadFromCSV(t *testing.T) {
	csv := `mod,massshift,aa,location,neutralloss
Phospho,79.966331,STY,Anywhere,97.976896
Acetyl,42.010565,X,N-terminal

# comment
Amide,-0.984016,X,Peptide C-terminal
`
	db := NewModDatabase()
	if err := db.LoadFromCSV(strings.NewReader(csv)); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}

	tests := []struct {
		id       string
		mass     float64
		location ModLocation
		loss     float64
	}{
		{"Phospho on S", 79.966331, Anywhere, 97.976896},
		{"Phospho on Y", 79.966331, Anywhere, 97.976896},
		{"Acetyl on X", 42.010565, ProteinNTerm, 0},
		{"Amide on X", -0.984016, PeptideCTerm, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			mod, ok := db.Get(tt.id)
			if !ok {
				t.Fatalf("Get(%q) not found", tt.id)
			}
			if math.Abs(mod.Mass-tt.mass) > 1e-9 || mod.Location != tt.location || mod.NeutralLoss != tt.loss {
				t.Errorf("Get(%q) = %+v", tt.id, mod)
			}
		})
	}
}

func TestLoadFromCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"too few fields", "h\nPhospho,79.9\n"},
		{"bad mass", "h\nPhospho,abc,S\n"},
		{"bad location", "h\nPhospho,79.9,S,Sideways\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewModDatabase().LoadFromCSV(strings.NewReader(tt.csv)); err == nil {
				t.Error("LoadFromCSV() expected error")
			}
		})
	}
}

func TestLookup(t *testing.T) {
	db := DefaultModDatabase()
	mods, err := db.Lookup("Oxidation on M; Carbamidomethyl on C")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(mods) != 2 || mods[0].ID() != "Oxidation on M" || mods[1].ID() != "Carbamidomethyl on C" {
		t.Errorf("Lookup() = %v", mods)
	}
	if _, err := db.Lookup("Nonsense on Z"); err == nil {
		t.Error("Lookup() expected error for unknown id")
	}
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		in      string
		want    Tolerance
		wantErr bool
	}{
		{"20 ppm", PpmTolerance(20), false},
		{"10PPM", PpmTolerance(10), false},
		{"±0.02 Da", AbsoluteTolerance(0.02), false},
		{"0.5 Absolute", AbsoluteTolerance(0.5), false},
		{"20", nil, true},
		{"-1 ppm", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTolerance(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTolerance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTolerance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToleranceWithin(t *testing.T) {
	ppm := PpmTolerance(10)
	if !ppm.Within(1000.009, 1000) || ppm.Within(1000.011, 1000) {
		t.Error("PpmTolerance.Within boundary behaviour wrong")
	}
	abs := AbsoluteTolerance(0.01)
	if !abs.Within(100.005, 100) || abs.Within(100.02, 100) {
		t.Error("AbsoluteTolerance.Within boundary behaviour wrong")
	}
	if math.Abs(ppm.Minimum(1000)-999.99) > 1e-9 || math.Abs(ppm.Maximum(1000)-1000.01) > 1e-9 {
		t.Error("PpmTolerance bounds wrong")
	}
}
