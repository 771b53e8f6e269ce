// Package index digests a protein database into a mass-sorted peptide list and builds the
// fragment and precursor indexes used by the indexed search.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

// ErrInvalidParams is returned for unusable index parameters.
var ErrInvalidParams = errors.New("invalid index parameters")

// TargetContaminantAmbiguity decides what happens to peptides whose full sequence occurs
// in both target and contaminant proteins.
type TargetContaminantAmbiguity int

const (
	KeepAll TargetContaminantAmbiguity = iota
	RemoveContaminant
	RemoveTarget
)

// ParseTargetContaminantAmbiguity parses KeepAll, RemoveContaminant or RemoveTarget.
func ParseTargetContaminantAmbiguity(s string) (TargetContaminantAmbiguity, error) {
	switch s {
	case "KeepAll", "":
		return KeepAll, nil
	case "RemoveContaminant":
		return RemoveContaminant, nil
	case "RemoveTarget":
		return RemoveTarget, nil
	}
	return KeepAll, fmt.Errorf("unknown target/contaminant ambiguity policy %q", s)
}

// Params configures index building.
type Params struct {
	Digestion             digestion.Params
	Proteases             *digestion.ProteaseRegistry // nil: digestion.NewProteaseRegistry()
	Dissociation          core.DissociationType
	CustomProductTypes    []digestion.ProductType
	FragmentationTerminus digestion.FragmentationTerminus

	// MaxFragmentMassBin is the last fragment bucket; the index has MaxFragmentMassBin+1
	// buckets. See MaxBinForMass.
	MaxFragmentMassBin     int
	GeneratePrecursorIndex bool
	TCAmbiguity            TargetContaminantAmbiguity
	Deduplicate            bool
	Threads                int // <= 0: runtime.NumCPU()
	Progress               core.ProgressFunc
}

// DefaultParams indexes tryptic HCD fragments up to 30000 Da.
func DefaultParams() Params {
	return Params{
		Digestion:          digestion.DefaultParams(),
		Dissociation:       core.HCD,
		MaxFragmentMassBin: MaxBinForMass(30000),
	}
}

// Result holds the mass-sorted peptides and the indexes over their positions.
type Result struct {
	Peptides  []*digestion.Peptide
	Fragment  *Bins
	Precursor *Bins // nil unless requested
	Unindexed int   // peptides with undefined mass
	Elapsed   time.Duration
}

// Build digests proteins and indexes the resulting peptides. The output is deterministic
// for a given input regardless of the number of threads.
func Build(ctx context.Context, proteins []*digestion.Protein, fixed, variable []*core.Modification, params Params) (*Result, error) {
	start := time.Now()
	if params.MaxFragmentMassBin <= 0 {
		return nil, fmt.Errorf("%w: max fragment mass bin must be positive, got %d", ErrInvalidParams, params.MaxFragmentMassBin)
	}
	if params.MaxFragmentMassBin >= math.MaxInt32 {
		return nil, fmt.Errorf("%w: max fragment mass bin %d is too large", ErrInvalidParams, params.MaxFragmentMassBin)
	}
	registry := params.Proteases
	if registry == nil {
		registry = digestion.NewProteaseRegistry()
	}
	digester, err := digestion.NewDigester(params.Digestion, registry, fixed, variable)
	if err != nil {
		return nil, err
	}
	threads := params.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	peptides, err := digestAll(ctx, digester, proteins, threads, params.Progress)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("digested %d proteins into %d peptides", len(proteins), len(peptides))

	peptides = resolveTargetContaminant(peptides, params.TCAmbiguity)
	if params.Deduplicate {
		peptides = deduplicate(peptides)
	}
	SortPeptides(peptides)

	res := &Result{Peptides: peptides}
	for _, p := range peptides {
		if math.IsNaN(p.MonoisotopicMass()) {
			res.Unindexed++
		}
	}

	opts := digestion.NewFragmentOptions(params.Dissociation, params.FragmentationTerminus, params.CustomProductTypes)
	nBins := params.MaxFragmentMassBin + 1
	fragPairs, err := fragmentPairs(ctx, peptides, opts, params.MaxFragmentMassBin, batches(threads, len(peptides)))
	if err != nil {
		return nil, err
	}
	res.Fragment = newBins(nBins, fragPairs)
	params.Progress.Report("fragment index", len(peptides), len(peptides))

	if params.GeneratePrecursorIndex {
		res.Precursor = newBins(nBins, precursorPairs(peptides, params.MaxFragmentMassBin))
		params.Progress.Report("precursor index", len(peptides), len(peptides))
	}

	res.Elapsed = time.Since(start)
	log.Printf("indexed %d peptides (%d fragment entries, %d without mass) in %v",
		len(peptides), res.Fragment.Entries(), res.Unindexed, res.Elapsed)
	return res, nil
}

// digestAll digests proteins in ascending ranges, one local buffer per range. Buffers are
// joined in range order, so the result follows protein order for any thread count.
func digestAll(ctx context.Context, d *digestion.Digester, proteins []*digestion.Protein, threads int, progress core.ProgressFunc) ([]*digestion.Peptide, error) {
	var done int64
	result := parallel.RangeReduce(0, len(proteins), batches(threads, len(proteins)), func(low, high int) interface{} {
		var peptides []*digestion.Peptide
		for i := low; i < high; i++ {
			if ctx.Err() != nil {
				return peptides
			}
			peptides = append(peptides, d.Peptides(proteins[i])...)
			progress.Report("digestion", int(atomic.AddInt64(&done, 1)), len(proteins))
		}
		return peptides
	}, func(x, y interface{}) interface{} {
		return append(x.([]*digestion.Peptide), y.([]*digestion.Peptide)...)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]*digestion.Peptide), nil
}

func batches(threads, n int) int {
	if threads > n {
		threads = n
	}
	if threads < 1 {
		threads = 1
	}
	return threads
}

// fragmentPairs computes the fragment buckets of every peptide. Each batch fills a local
// buffer over an ascending range of positions; the buffers are joined in range order.
func fragmentPairs(ctx context.Context, peptides []*digestion.Peptide, opts digestion.FragmentOptions, maxBin, n int) ([]pair, error) {
	result := parallel.RangeReduce(0, len(peptides), n, func(low, high int) interface{} {
		var pairs []pair
		var products []digestion.Product
		var bins []int
		for id := low; id < high; id++ {
			if ctx.Err() != nil {
				return pairs
			}
			p := peptides[id]
			if math.IsNaN(p.MonoisotopicMass()) {
				continue
			}
			products = p.Fragment(opts, products)
			bins = bins[:0]
			for _, prod := range products {
				m := prod.NeutralMass
				if math.IsNaN(m) || m <= 0 {
					continue
				}
				if b := MassBin(m); b <= maxBin {
					bins = append(bins, b)
				}
			}
			sort.Ints(bins)
			for i, b := range bins {
				if i > 0 && bins[i-1] == b {
					continue
				}
				pairs = append(pairs, pair{bin: int32(b), id: int32(id)})
			}
		}
		return pairs
	}, func(x, y interface{}) interface{} {
		return append(x.([]pair), y.([]pair)...)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]pair), nil
}

// precursorPairs buckets peptides by mass. Peptides are mass-sorted, so iteration stops at
// the first mass beyond the last bucket; NaN masses sort last and are skipped.
func precursorPairs(peptides []*digestion.Peptide, maxBin int) []pair {
	pairs := make([]pair, 0, len(peptides))
	for id, p := range peptides {
		m := p.MonoisotopicMass()
		if math.IsNaN(m) {
			continue
		}
		b := MassBin(m)
		if b > maxBin {
			break
		}
		if b < 0 {
			continue
		}
		pairs = append(pairs, pair{bin: int32(b), id: int32(id)})
	}
	return pairs
}

// SortPeptides orders peptides by mass (NaN last), then full sequence, accession and start.
func SortPeptides(peptides []*digestion.Peptide) {
	sort.SliceStable(peptides, func(i, j int) bool {
		a, b := peptides[i], peptides[j]
		ma, mb := a.MonoisotopicMass(), b.MonoisotopicMass()
		if na, nb := math.IsNaN(ma), math.IsNaN(mb); na != nb {
			return nb
		} else if !na && ma != mb {
			return ma < mb
		}
		if a.FullSequence() != b.FullSequence() {
			return a.FullSequence() < b.FullSequence()
		}
		if a.Accession() != b.Accession() {
			return a.Accession() < b.Accession()
		}
		return a.OneBasedStartResidue() < b.OneBasedStartResidue()
	})
}

func deduplicate(peptides []*digestion.Peptide) []*digestion.Peptide {
	seen := make(map[string]bool, len(peptides))
	out := peptides[:0]
	for _, p := range peptides {
		if k := p.Key(); !seen[k] {
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

func resolveTargetContaminant(peptides []*digestion.Peptide, policy TargetContaminantAmbiguity) []*digestion.Peptide {
	if policy == KeepAll {
		return peptides
	}
	target := make(map[string]bool)
	contaminant := make(map[string]bool)
	for _, p := range peptides {
		if p.IsContaminant() {
			contaminant[p.FullSequence()] = true
		} else if !p.IsDecoy() {
			target[p.FullSequence()] = true
		}
	}
	out := peptides[:0]
	removed := 0
	for _, p := range peptides {
		seq := p.FullSequence()
		ambiguous := target[seq] && contaminant[seq]
		switch {
		case ambiguous && policy == RemoveContaminant && p.IsContaminant():
			removed++
		case ambiguous && policy == RemoveTarget && !p.IsContaminant() && !p.IsDecoy():
			removed++
		default:
			out = append(out, p)
		}
	}
	if removed > 0 {
		log.Debug.Printf("removed %d target/contaminant ambiguous peptides", removed)
	}
	return out
}
