package search

import (
	"math"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// MatchFragmentIons pairs every theoretical product with the closest observed peak,
// keeping the pair when it lies within tol and the peak charge does not exceed the
// precursor charge. For each complementary shift, the complement of every product
// (precursor mass + shift - product mass) is matched the same way. Products with NaN mass
// are skipped.
func MatchFragmentIons(scan *Ms2Scan, products []digestion.Product, tol core.Tolerance, compShifts []float64) []psm.MatchedIon {
	if scan.NumPeaks() == 0 {
		return nil
	}
	maxCharge := scan.PrecursorCharge
	if maxCharge < 0 {
		maxCharge = -maxCharge
	}

	var ions []psm.MatchedIon
	for _, p := range products {
		if math.IsNaN(p.NeutralMass) {
			continue
		}
		i := scan.closest(p.NeutralMass)
		peak := scan.frags.peaks[i]
		if abs(peakCharge(peak)) > maxCharge || !tol.Within(scan.frags.masses[i], p.NeutralMass) {
			continue
		}
		ions = append(ions, psm.MatchedIon{
			Product:    p,
			ObservedMZ: peak.MZ,
			Intensity:  peak.Intensity,
			Charge:     peakCharge(peak),
		})
	}

	for _, shift := range compShifts {
		for _, p := range products {
			if math.IsNaN(p.NeutralMass) {
				continue
			}
			comp := scan.PrecursorMass + shift - p.NeutralMass
			if comp <= 0 {
				continue
			}
			i := scan.closest(comp)
			peak := scan.frags.peaks[i]
			if abs(peakCharge(peak)) > maxCharge || !tol.Within(scan.frags.masses[i], comp) {
				continue
			}
			// report the observed peak converted back onto the product's own mass scale
			observed := scan.PrecursorMass + shift - scan.frags.masses[i]
			ions = append(ions, psm.MatchedIon{
				Product:    p,
				ObservedMZ: core.MassToMz(observed, 1),
				Intensity:  peak.Intensity,
				Charge:     1,
			})
		}
	}
	return ions
}

// Score turns matched ions into a score. Diagnostic ions are ignored; ions at or below
// maxDoubled count twice when maxDoubled is positive.
func Score(ions []psm.MatchedIon, totalIonCurrent float64, fn ScoringFunction, maxDoubled float64) float64 {
	score := 0.0
	for _, ion := range ions {
		if ion.Product.Type == digestion.D {
			continue
		}
		s := 1.0
		if fn == MorpheusScore && totalIonCurrent > 0 {
			s += ion.Intensity / totalIonCurrent
		}
		if maxDoubled > 0 && ion.Product.NeutralMass <= maxDoubled {
			s *= 2
		}
		score += s
	}
	return score
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
