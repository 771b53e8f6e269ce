package search

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/acceptor"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/index"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// Modern searches scans through the fragment index. Every observed fragment mass, and its
// complement when requested, adds one to the rough score of each peptide listed in the
// index buckets within the product tolerance. Peptides are restricted to the precursor
// mass windows of the acceptor, through the precursor index when one was built.
// Candidates reaching the score cutoff are then scored exactly, best rough score first.
//
// Scans are split into contiguous partitions; each partition owns its scoring table and
// writes only the output slots of its own scans.
func Modern(ctx context.Context, scans []*Ms2Scan, idx *index.Result, acc acceptor.MassDiffAcceptor, params Params) (*Result, error) {
	start := time.Now()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if idx == nil || idx.Fragment == nil {
		return nil, errors.New("modern search needs a fragment index")
	}
	if acc == nil {
		return nil, errors.New("modern search needs a mass difference acceptor")
	}
	var shifts []float64
	if params.AddCompIons {
		shifts, _ = complementaryShifts(params.Dissociation)
	}
	threads := params.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	slots := make([][]*psm.SpectralMatch, len(scans))
	if len(scans) > 0 {
		var done int64
		parallel.Range(0, len(scans), threads, func(low, high int) {
			w := newModernWorker(idx, acc, &params, shifts)
			for i := low; i < high; i++ {
				if ctx.Err() != nil {
					return
				}
				slots[i] = w.search(scans[i])
				params.Progress.Report("modern search", int(atomic.AddInt64(&done, 1)), len(scans))
			}
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := finish(slots, start)
	log.Printf("modern search: %d matches for %d scans in %v", len(res.Matches), len(scans), res.Elapsed)
	return res, nil
}

type roughCandidate struct {
	id    int32
	rough byte
}

type modernWorker struct {
	idx      *index.Result
	acc      acceptor.MassDiffAcceptor
	params   *Params
	shifts   []float64
	opts     digestion.FragmentOptions
	minRough byte

	table    []byte
	touched  []int32
	products []digestion.Product
}

func newModernWorker(idx *index.Result, acc acceptor.MassDiffAcceptor, params *Params, shifts []float64) *modernWorker {
	minRough := math.Floor(params.ScoreCutoff)
	if minRough < 1 {
		minRough = 1
	}
	if minRough > math.MaxUint8 {
		minRough = math.MaxUint8
	}
	return &modernWorker{
		idx:      idx,
		acc:      acc,
		params:   params,
		shifts:   shifts,
		opts:     params.fragmentOptions(),
		minRough: byte(minRough),
		table:    make([]byte, len(idx.Peptides)),
	}
}

func (w *modernWorker) search(scan *Ms2Scan) []*psm.SpectralMatch {
	ranges := w.candidateRanges(scan)
	if len(ranges) == 0 || scan.NumPeaks() == 0 {
		return nil
	}

	for _, m := range scan.FragmentMasses() {
		w.scoreBins(m, ranges, w.increment(m))
		for _, shift := range w.shifts {
			if comp := scan.PrecursorMass + shift - m; comp > 0 {
				w.scoreBins(comp, ranges, w.increment(comp))
			}
		}
	}

	var candidates []roughCandidate
	for _, id := range w.touched {
		if r := w.table[id]; r >= w.minRough {
			candidates = append(candidates, roughCandidate{id: id, rough: r})
		}
		w.table[id] = 0
	}
	w.touched = w.touched[:0]
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rough != candidates[j].rough {
			return candidates[i].rough > candidates[j].rough
		}
		return candidates[i].id < candidates[j].id
	})

	c := newCollector(scan, w.params, w.acc.NumNotches())
	// Doubled ions and low-resolution CID let the fine score exceed the rough score by more
	// than the slack, so every candidate is scored there.
	earlyStop := w.params.topN() == 1 && len(c.groups) == 1 &&
		w.params.MaxMassThatFragmentIonScoreIsDoubled <= 0 && w.params.Dissociation != core.LowCID
	slack := 0.0
	if w.params.Scoring == MorpheusScore {
		slack = 1
	}
	for _, cand := range candidates {
		if earlyStop && !c.empty() && c.groups[0][0].Score > float64(cand.rough)+slack {
			break
		}
		pep := w.idx.Peptides[cand.id]
		notch := w.acc.Accepts(scan.PrecursorMass, pep.MonoisotopicMass())
		if notch < 0 {
			continue
		}
		w.products = pep.Fragment(w.opts, w.products)
		ions := MatchFragmentIons(scan, w.products, w.params.ProductTolerance, w.shifts)
		if len(ions) == 0 {
			continue
		}
		score := Score(ions, scan.TotalIonCurrent, w.params.Scoring, w.params.MaxMassThatFragmentIonScoreIsDoubled)
		if score < w.params.ScoreCutoff {
			continue
		}
		c.add(psm.Hypothesis{Notch: notch, Candidate: pep, Ions: ions}, score)
	}
	return c.matches()
}

func (w *modernWorker) increment(mass float64) int {
	if limit := w.params.MaxMassThatFragmentIonScoreIsDoubled; limit > 0 && mass <= limit {
		return 2
	}
	return 1
}

// candidateRanges returns the merged ranges of peptide positions [lo, hi) whose mass falls
// in one of the acceptor windows of the scan.
func (w *modernWorker) candidateRanges(scan *Ms2Scan) [][2]int {
	var ranges [][2]int
	for _, iv := range w.acc.FromObserved(scan.PrecursorMass) {
		lo, hi, ok := w.precursorRange(iv)
		if !ok {
			lo, hi = massRange(w.idx.Peptides, iv)
		}
		if lo < hi {
			ranges = append(ranges, [2]int{lo, hi})
		}
	}
	return mergeRanges(ranges)
}

// precursorRange resolves a finite window through the precursor index. Positions within
// a bucket are contiguous because peptides are sorted by mass.
func (w *modernWorker) precursorRange(iv acceptor.Interval) (int, int, bool) {
	pre := w.idx.Precursor
	if pre == nil || !iv.Finite() {
		return 0, 0, false
	}
	bLo, bHi := index.MassBin(iv.Min), index.MassBin(iv.Max)
	if bHi >= pre.Len() {
		return 0, 0, false
	}
	if bLo < 0 {
		bLo = 0
	}
	lo, hi := -1, -1
	for b := bLo; b <= bHi; b++ {
		ids := pre.Bin(b)
		if len(ids) == 0 {
			continue
		}
		if lo < 0 {
			lo = int(ids[0])
		}
		hi = int(ids[len(ids)-1]) + 1
	}
	if lo < 0 {
		return 0, 0, true
	}
	return lo, hi, true
}

// massRange binary searches the mass-sorted peptides. NaN masses sort last and are never
// included.
func massRange(peptides []*digestion.Peptide, iv acceptor.Interval) (int, int) {
	lo := sort.Search(len(peptides), func(i int) bool {
		m := peptides[i].MonoisotopicMass()
		return math.IsNaN(m) || m >= iv.Min
	})
	hi := sort.Search(len(peptides), func(i int) bool {
		m := peptides[i].MonoisotopicMass()
		return math.IsNaN(m) || m > iv.Max
	})
	return lo, hi
}

func mergeRanges(ranges [][2]int) [][2]int {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r[0] <= last[1] {
			if r[1] > last[1] {
				last[1] = r[1]
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// scoreBins increments the rough score of every peptide in ranges that lists a fragment
// within the product tolerance of mass.
func (w *modernWorker) scoreBins(mass float64, ranges [][2]int, inc int) {
	frag := w.idx.Fragment
	bLo := index.MassBin(w.params.ProductTolerance.Minimum(mass))
	bHi := index.MassBin(w.params.ProductTolerance.Maximum(mass))
	if bLo < 0 {
		bLo = 0
	}
	if bHi >= frag.Len() {
		bHi = frag.Len() - 1
	}
	for b := bLo; b <= bHi; b++ {
		ids := frag.Bin(b)
		if len(ids) == 0 {
			continue
		}
		for _, r := range ranges {
			lo, hi := int32(r[0]), int32(r[1])
			k := sort.Search(len(ids), func(i int) bool { return ids[i] >= lo })
			for ; k < len(ids) && ids[k] < hi; k++ {
				id := ids[k]
				if w.table[id] == 0 {
					w.touched = append(w.touched, id)
				}
				if t := int(w.table[id]) + inc; t < math.MaxUint8 {
					w.table[id] = byte(t)
				} else {
					w.table[id] = math.MaxUint8
				}
			}
		}
	}
}

func finish(slots [][]*psm.SpectralMatch, start time.Time) *Result {
	res := &Result{ScansSearched: len(slots)}
	for _, s := range slots {
		res.Matches = append(res.Matches, s...)
	}
	SortMatches(res.Matches)
	res.Elapsed = time.Since(start)
	return res
}
