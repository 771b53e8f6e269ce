// Package core provides chemistry calculations, tolerances, modification definitions and
// the scan model shared by the indexing, search and FDR packages.
package core

import "math"

// Atomic masses (monoisotopic)
const (
	MassH  = 1.0078250321
	MassC  = 12.0000000000
	MassN  = 14.0030740052
	MassO  = 15.9949146221
	MassS  = 31.9720706900
	MassP  = 30.9737615100
	MassSe = 79.9165218

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	WaterMass   = 2*MassH + MassO
	AmmoniaMass = 3*MassH + MassN

	// C13MinusC12 is the spacing of the isotopic envelope.
	C13MinusC12 = 1.00335483810
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S, Se int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS +
		float64(c.Se)*MassSe
}

// AminoAcidMasses maps amino acid one-letter codes to the elemental composition of the
// residue (amino acid minus water).
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
	'U': {C: 3, H: 5, N: 1, O: 1, Se: 1},
	'O': {C: 12, H: 19, N: 3, O: 2},
}

// residueMasses is a byte indexed copy of AminoAcidMasses; NaN marks unknown residues.
var residueMasses [256]float64

func init() {
	for i := range residueMasses {
		residueMasses[i] = math.NaN()
	}
	for aa, comp := range AminoAcidMasses {
		residueMasses[byte(aa)] = comp.Mass()
	}
}

// ResidueMass returns the monoisotopic residue mass of aa. The boolean is false (and the
// mass NaN) for residues without a defined composition, such as 'X' or 'B'.
func ResidueMass(aa byte) (float64, bool) {
	m := residueMasses[aa]
	return m, !math.IsNaN(m)
}

// CalculatePeptideMass computes monoisotopic mass of a peptide sequence
// including modifications, then returns the m/z for a given charge state.
func CalculatePeptideMass(sequence string, charge int, modMasses []float64) float64 {
	return MassToMz(CalculateNeutralMass(sequence, modMasses), charge)
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide. The result is
// NaN if the sequence contains a residue with unknown mass.
func CalculateNeutralMass(sequence string, modMasses []float64) float64 {
	mass := WaterMass
	for i := 0; i < len(sequence); i++ {
		mass += residueMasses[sequence[i]]
	}
	for _, m := range modMasses {
		mass += m
	}
	return mass
}

// MassToMz converts a neutral mass to m/z: (mass + charge * proton) / |charge|
func MassToMz(mass float64, charge int) float64 {
	z := float64(charge)
	return (mass + z*ProtonMass) / math.Abs(z)
}

// MzToMass converts an m/z at the given charge to a neutral mass.
func MzToMass(mz float64, charge int) float64 {
	z := float64(charge)
	return mz*math.Abs(z) - z*ProtonMass
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
