// Package fdr estimates false discovery rates of spectral matches from target and decoy
// identifications, with optional posterior error probabilities.
package fdr

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// ErrTooFewMatches is returned in strict mode when there are too few matches for the
// q-values to be trusted.
var ErrTooFewMatches = errors.New("too few matches for q-value estimation")

const (
	// DefaultMinMatchesForQValue is the smallest match count whose q-values are trusted.
	DefaultMinMatchesForQValue = 100
	// DefaultQValueCutoffForPEPTraining selects the targets used to train the PEP model.
	DefaultQValueCutoffForPEPTraining = 0.01
)

// Engine configures FDR analysis.
type Engine struct {
	NumNotches int
	DoPEP      bool
	Model      PEPModel // nil: &LogisticModel{}

	MinMatchesForQValue int  // 0: DefaultMinMatchesForQValue
	OverrideMinCount    bool // trust q-values below MinMatchesForQValue
	Strict              bool // fail instead of flagging provisional results

	// ExcludeContaminantOnly leaves matches whose hypotheses are all contaminants out of
	// the target and decoy counts. They still receive the q-value at their position.
	ExcludeContaminantOnly bool

	QValueCutoffForPEPTraining float64 // 0: DefaultQValueCutoffForPEPTraining
}

// Result is the outcome of Run.
type Result struct {
	// Matches are sorted best first and carry their FdrInfo.
	Matches     []*psm.SpectralMatch
	Targets     float64
	Decoys      float64
	Provisional bool
	PEPComputed bool
	Warnings    []string
}

func (r *Result) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Error.Printf("fdr: %s", msg)
}

// Run sorts matches and annotates them with cumulative counts, q-values, notch q-values
// and, when enabled, PEP and PEP q-values. Matches is sorted in place.
func (e *Engine) Run(matches []*psm.SpectralMatch) (*Result, error) {
	res := &Result{}
	if len(matches) == 0 {
		return res, nil
	}
	minCount := e.MinMatchesForQValue
	if minCount <= 0 {
		minCount = DefaultMinMatchesForQValue
	}
	if len(matches) < minCount && !e.OverrideMinCount {
		if e.Strict {
			return nil, fmt.Errorf("%w: %d matches, need %d", ErrTooFewMatches, len(matches), minCount)
		}
		res.Provisional = true
		res.warn("only %d matches (minimum %d), q-values are provisional", len(matches), minCount)
	}

	Sort(matches)
	res.Matches = matches
	e.qValues(res)

	if e.DoPEP {
		if res.Provisional {
			res.warn("skipping PEP: too few matches to train a model")
		} else if err := e.pep(res); err != nil {
			res.warn("skipping PEP: %v", err)
		} else {
			res.PEPComputed = true
		}
	}
	log.Printf("fdr: %d matches, %.1f targets, %.1f decoys", len(matches), res.Targets, res.Decoys)
	return res, nil
}

func (e *Engine) qValues(res *Result) {
	notches := e.NumNotches
	if notches < 1 {
		notches = 1
	}
	for _, m := range res.Matches {
		if n := notchOf(m); n >= notches {
			notches = n + 1
		}
	}
	notchTarget := make([]float64, notches)
	notchDecoy := make([]float64, notches)

	var target, decoy float64
	for _, m := range res.Matches {
		n := notchOf(m)
		if !(e.ExcludeContaminantOnly && m.ContaminantOnly()) {
			d := 0.0
			if m.IsDecoy() {
				d = m.DecoyFraction()
			}
			decoy += d
			target += 1 - d
			notchDecoy[n] += d
			notchTarget[n] += 1 - d
		}
		m.Fdr = &psm.FdrInfo{
			CumulativeTarget:      target,
			CumulativeDecoy:       decoy,
			CumulativeTargetNotch: notchTarget[n],
			CumulativeDecoyNotch:  notchDecoy[n],
			QValue:                rawFDR(decoy, target),
			QValueNotch:           rawFDR(notchDecoy[n], notchTarget[n]),
			PEP:                   math.NaN(),
			PEPQValue:             math.NaN(),
		}
	}
	res.Targets, res.Decoys = target, decoy

	ms := res.Matches
	for i := len(ms) - 2; i >= 0; i-- {
		ms[i].Fdr.QValue = math.Min(ms[i].Fdr.QValue, ms[i+1].Fdr.QValue)
	}
	next := make([]float64, notches)
	for i := range next {
		next[i] = math.Inf(1)
	}
	for i := len(ms) - 1; i >= 0; i-- {
		n := notchOf(ms[i])
		ms[i].Fdr.QValueNotch = math.Min(ms[i].Fdr.QValueNotch, next[n])
		next[n] = ms[i].Fdr.QValueNotch
	}
}

// rawFDR is decoys/targets capped at one, with at least one target assumed.
func rawFDR(decoy, target float64) float64 {
	return math.Min(1, decoy/math.Max(target, 1))
}

func notchOf(m *psm.SpectralMatch) int {
	if m.Resolved.Notch >= 0 {
		return m.Resolved.Notch
	}
	if n := m.Best().Notch; n >= 0 {
		return n
	}
	return 0
}

// Sort orders matches best first: score descending, then the canonical hypothesis, then
// the smaller absolute precursor mass error, then scan identity.
func Sort(matches []*psm.SpectralMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := psm.CompareHypotheses(a.Best(), b.Best()); c != 0 {
			return c < 0
		}
		if ea, eb := absError(a), absError(b); ea != eb {
			return ea < eb
		}
		if a.ScanNumber != b.ScanNumber {
			return a.ScanNumber < b.ScanNumber
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.CoisolationIndex < b.CoisolationIndex
	})
}

func absError(m *psm.SpectralMatch) float64 {
	e := m.PrecursorMassError()
	if math.IsNaN(e) {
		return math.Inf(1)
	}
	return math.Abs(e)
}

// Cutoff selects confident matches. A zero PEPQValue disables the PEP criterion.
type Cutoff struct {
	QValue    float64
	PEPQValue float64
}

// Filter returns the target matches that pass c, in their input order.
func Filter(matches []*psm.SpectralMatch, c Cutoff) []*psm.SpectralMatch {
	var out []*psm.SpectralMatch
	for _, m := range matches {
		if m.Fdr == nil || m.IsDecoy() {
			continue
		}
		if m.Fdr.QValue > c.QValue {
			continue
		}
		if c.PEPQValue > 0 && !(m.Fdr.PEPQValue <= c.PEPQValue) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// CountByFullSequence counts matches per resolved full sequence. Ambiguous matches are
// not counted.
func CountByFullSequence(matches []*psm.SpectralMatch) map[string]int {
	counts := make(map[string]int)
	for _, m := range matches {
		if m.Resolved.FullSequence != "" {
			counts[m.Resolved.FullSequence]++
		}
	}
	return counts
}
