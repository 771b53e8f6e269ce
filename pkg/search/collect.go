package search

import (
	"math"
	"sort"
	"time"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// Result is the outcome of a search.
type Result struct {
	// Matches are sorted by scan, precursor, descending score and canonical hypothesis.
	Matches       []*psm.SpectralMatch
	ScansSearched int
	Elapsed       time.Duration
}

// collector keeps the best score tiers of one Ms2Scan. With BestPerNotch every notch has
// its own group of tiers, otherwise there is a single group.
type collector struct {
	scan   *Ms2Scan
	params *Params
	groups [][]*psm.SpectralMatch
	below  []float64 // best score that did not make it into a group
}

func newCollector(scan *Ms2Scan, params *Params, numNotches int) *collector {
	n := 1
	if params.BestPerNotch && numNotches > 1 {
		n = numNotches
	}
	return &collector{
		scan:   scan,
		params: params,
		groups: make([][]*psm.SpectralMatch, n),
		below:  make([]float64, n),
	}
}

func (c *collector) add(h psm.Hypothesis, score float64) {
	g := 0
	if len(c.groups) > 1 && h.Notch >= 0 && h.Notch < len(c.groups) {
		g = h.Notch
	}
	tiers := c.groups[g]
	for _, m := range tiers {
		if math.Abs(m.Score-score) <= psm.ScoreTolerance {
			m.AddOrReplace(h, score, c.params.ReportAllAmbiguity)
			return
		}
	}

	topN := c.params.topN()
	pos := sort.Search(len(tiers), func(i int) bool { return tiers[i].Score < score })
	if pos >= topN {
		c.below[g] = math.Max(c.below[g], score)
		return
	}
	tiers = append(tiers, nil)
	copy(tiers[pos+1:], tiers[pos:])
	tiers[pos] = psm.New(psm.PeptideMatch, c.scan.info(), score, h)
	if len(tiers) > topN {
		c.below[g] = math.Max(c.below[g], tiers[topN].Score)
		tiers = tiers[:topN]
	}
	c.groups[g] = tiers
}

func (c *collector) empty() bool {
	for _, g := range c.groups {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// matches finalizes runner-up scores and ambiguity resolution.
func (c *collector) matches() []*psm.SpectralMatch {
	var out []*psm.SpectralMatch
	for g, tiers := range c.groups {
		for i, m := range tiers {
			if i+1 < len(tiers) {
				m.RunnerUpScore = tiers[i+1].Score
			} else {
				m.RunnerUpScore = c.below[g]
			}
			m.ResolveAllAmbiguities()
			out = append(out, m)
		}
	}
	return out
}

// SortMatches puts matches in their deterministic report order.
func SortMatches(matches []*psm.SpectralMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.ScanIndex != b.ScanIndex {
			return a.ScanIndex < b.ScanIndex
		}
		if a.CoisolationIndex != b.CoisolationIndex {
			return a.CoisolationIndex < b.CoisolationIndex
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return psm.CompareHypotheses(a.Best(), b.Best()) < 0
	})
}
