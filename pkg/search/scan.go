package search

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// Ms2Scan is one precursor of an MS2 scan. A scan with coisolated precursors yields one
// Ms2Scan per precursor, all sharing the same peaks.
type Ms2Scan struct {
	Scan             *core.Scan
	ScanIndex        int
	CoisolationIndex int
	PrecursorMZ      float64
	PrecursorCharge  int
	PrecursorMass    float64
	TotalIonCurrent  float64

	frags *fragments
}

// fragments holds the neutral masses of a peak list in ascending order.
type fragments struct {
	masses []float64
	peaks  []core.Peak // peaks[i] produced masses[i]
}

// NewMs2Scans expands scans into per-precursor search units sorted by precursor mass.
// Scans without a usable precursor are skipped.
func NewMs2Scans(scans []*core.Scan) []*Ms2Scan {
	var out []*Ms2Scan
	skipped := 0
	for i, s := range scans {
		precursors := s.PrecursorList()
		if len(precursors) == 0 {
			skipped++
			continue
		}
		frags := newFragments(s.Peaks)
		tic := s.TotalIonCurrent()
		for ci, p := range precursors {
			mass := p.Mass()
			if p.Charge == 0 || math.IsNaN(mass) || math.IsInf(mass, 0) || mass <= 0 {
				skipped++
				continue
			}
			out = append(out, &Ms2Scan{
				Scan:             s,
				ScanIndex:        i,
				CoisolationIndex: ci,
				PrecursorMZ:      p.MZ,
				PrecursorCharge:  p.Charge,
				PrecursorMass:    mass,
				TotalIonCurrent:  tic,
				frags:            frags,
			})
		}
	}
	if skipped > 0 {
		log.Error.Printf("skipped %d precursors without a usable mass or charge", skipped)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PrecursorMass < out[j].PrecursorMass
	})
	return out
}

func newFragments(peaks []core.Peak) *fragments {
	f := &fragments{masses: make([]float64, 0, len(peaks)), peaks: make([]core.Peak, 0, len(peaks))}
	idx := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if p.MZ <= 0 || math.IsNaN(p.MZ) || math.IsInf(p.MZ, 0) {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return peakMass(peaks[idx[a]]) < peakMass(peaks[idx[b]])
	})
	for _, i := range idx {
		f.masses = append(f.masses, peakMass(peaks[i]))
		f.peaks = append(f.peaks, peaks[i])
	}
	return f
}

// peakMass converts a peak to a neutral mass, assuming charge 1 when unknown.
func peakMass(p core.Peak) float64 {
	return core.MzToMass(p.MZ, peakCharge(p))
}

func peakCharge(p core.Peak) int {
	if p.Charge == 0 {
		return 1
	}
	return p.Charge
}

// NumPeaks returns the number of usable peaks.
func (s *Ms2Scan) NumPeaks() int { return len(s.frags.masses) }

// FragmentMasses returns the neutral peak masses in ascending order.
func (s *Ms2Scan) FragmentMasses() []float64 { return s.frags.masses }

// closest returns the index of the peak mass nearest to mass, or -1 for an empty scan.
func (s *Ms2Scan) closest(mass float64) int {
	m := s.frags.masses
	if len(m) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(m, mass)
	switch {
	case i == len(m):
		return i - 1
	case i == 0:
		return 0
	case mass-m[i-1] <= m[i]-mass:
		return i - 1
	}
	return i
}

func (s *Ms2Scan) info() psm.ScanInfo {
	return psm.ScanInfo{
		FilePath:         s.Scan.SourceFile,
		ScanNumber:       s.Scan.ScanNumber,
		ScanIndex:        s.ScanIndex,
		CoisolationIndex: s.CoisolationIndex,
		PrecursorMass:    s.PrecursorMass,
		PrecursorMZ:      s.PrecursorMZ,
		PrecursorCharge:  s.PrecursorCharge,
		RetentionTime:    s.Scan.RetentionTime,
		TotalIonCurrent:  s.TotalIonCurrent,
	}
}
