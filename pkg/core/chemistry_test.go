package core

import (
	"math"
	"testing"
)

func TestCalculatePeptideMass(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		charge    int
		modMasses []float64
		wantMZ    float64
		tolerance float64
	}{
		{
			name:      "simple peptide charge 1",
			sequence:  "AAA",
			charge:    1,
			wantMZ:    232.1292,
			tolerance: 0.001,
		},
		{
			name:      "simple peptide charge 2",
			sequence:  "AAA",
			charge:    2,
			wantMZ:    116.5682,
			tolerance: 0.001,
		},
		{
			name:      "peptide with modification",
			sequence:  "PEPTIDE",
			charge:    2,
			modMasses: []float64{57.021464},
			wantMZ:    429.1980,
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMass(tt.sequence, tt.charge, tt.modMasses)
			if math.Abs(got-tt.wantMZ) > tt.tolerance {
				t.Errorf("CalculatePeptideMass() = %.4f, want %.4f (within %.4f)", got, tt.wantMZ, tt.tolerance)
			}
		})
	}
}

func TestCalculateNeutralMass(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		modMasses []float64
		wantMass  float64
		tolerance float64
	}{
		{
			name:      "simple tripeptide",
			sequence:  "AAA",
			wantMass:  231.121906,
			tolerance: 1e-5,
		},
		{
			name:      "with modification",
			sequence:  "AAA",
			modMasses: []float64{57.021464},
			wantMass:  288.143370,
			tolerance: 1e-5,
		},
		{
			name:      "PEPTIDE",
			sequence:  "PEPTIDE",
			wantMass:  799.359964,
			tolerance: 1e-5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNeutralMass(tt.sequence, tt.modMasses)
			if math.Abs(got-tt.wantMass) > tt.tolerance {
				t.Errorf("CalculateNeutralMass() = %.6f, want %.6f (within %g)", got, tt.wantMass, tt.tolerance)
			}
		})
	}
}

func TestUnknownResidueMassIsNaN(t *testing.T) {
	if got := CalculateNeutralMass("MQXQ", nil); !math.IsNaN(got) {
		t.Errorf("CalculateNeutralMass(MQXQ) = %v, want NaN", got)
	}
	if _, ok := ResidueMass('X'); ok {
		t.Error("ResidueMass('X') reported a known mass")
	}
	if m, ok := ResidueMass('G'); !ok || math.Abs(m-57.021464) > 1e-6 {
		t.Errorf("ResidueMass('G') = %v, %v", m, ok)
	}
}

func TestMzMassRoundTrip(t *testing.T) {
	for _, z := range []int{1, 2, 3, -2} {
		mz := MassToMz(1000, z)
		if got := MzToMass(mz, z); math.Abs(got-1000) > 1e-9 {
			t.Errorf("charge %d: MzToMass(MassToMz(1000)) = %v", z, got)
		}
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		name      string
		val       float64
		precision int
		want      float64
	}{
		{"round to 2 decimals", 3.14159, 2, 3.14},
		{"round to 4 decimals", 3.14159, 4, 3.1416},
		{"round to 0 decimals", 3.6, 0, 4.0},
		{"round negative", -3.14159, 2, -3.14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundFloat(tt.val, tt.precision)
			if got != tt.want {
				t.Errorf("RoundFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}
