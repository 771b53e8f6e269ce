package search

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/acceptor"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// Classic scores every peptide against every scan whose precursor mass lies in one of the
// peptide's acceptor windows. Work is split over peptides, so matches for a scan may be
// produced by several workers; each scan's collector is guarded by its own mutex.
func Classic(ctx context.Context, scans []*Ms2Scan, peptides []*digestion.Peptide, acc acceptor.MassDiffAcceptor, params Params) (*Result, error) {
	start := time.Now()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errors.New("classic search needs a mass difference acceptor")
	}
	var shifts []float64
	if params.AddCompIons {
		shifts, _ = complementaryShifts(params.Dissociation)
	}
	threads := params.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	order := make([]int, len(scans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scans[order[a]].PrecursorMass < scans[order[b]].PrecursorMass
	})
	masses := make([]float64, len(order))
	for i, o := range order {
		masses[i] = scans[o].PrecursorMass
	}

	collectors := make([]*collector, len(scans))
	locks := make([]sync.Mutex, len(scans))
	for i, s := range scans {
		collectors[i] = newCollector(s, &params, acc.NumNotches())
	}

	opts := params.fragmentOptions()
	if len(peptides) > 0 && len(scans) > 0 {
		var done int64
		parallel.Range(0, len(peptides), threads, func(low, high int) {
			var products []digestion.Product
			for id := low; id < high; id++ {
				if ctx.Err() != nil {
					return
				}
				pep := peptides[id]
				mass := pep.MonoisotopicMass()
				if math.IsNaN(mass) {
					continue
				}
				fragmented := false
				for _, iv := range acc.FromTheoretical(mass) {
					first := sort.SearchFloat64s(masses, iv.Min)
					for k := first; k < len(masses) && masses[k] <= iv.Max; k++ {
						si := order[k]
						scan := scans[si]
						notch := acc.Accepts(scan.PrecursorMass, mass)
						if notch < 0 {
							continue
						}
						if !fragmented {
							products = pep.Fragment(opts, products)
							fragmented = true
						}
						ions := MatchFragmentIons(scan, products, params.ProductTolerance, shifts)
						if len(ions) == 0 {
							continue
						}
						score := Score(ions, scan.TotalIonCurrent, params.Scoring, params.MaxMassThatFragmentIonScoreIsDoubled)
						if score < params.ScoreCutoff {
							continue
						}
						locks[si].Lock()
						collectors[si].add(psm.Hypothesis{Notch: notch, Candidate: pep, Ions: ions}, score)
						locks[si].Unlock()
					}
				}
			}
			params.Progress.Report("classic search", int(atomic.AddInt64(&done, int64(high-low))), len(peptides))
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slots := make([][]*psm.SpectralMatch, len(scans))
	for i, c := range collectors {
		slots[i] = c.matches()
	}
	res := finish(slots, start)
	log.Printf("classic search: %d matches for %d scans and %d peptides in %v", len(res.Matches), len(scans), len(peptides), res.Elapsed)
	return res, nil
}
