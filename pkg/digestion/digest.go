package digestion

import (
	"fmt"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// nonSpecificMaxLength bounds non-specific digestion when no max length is configured.
const nonSpecificMaxLength = 50

// Digester produces modified peptides from proteins. It holds no mutable state and is
// safe for concurrent use.
type Digester struct {
	params   Params
	protease *Protease
	fixed    []*core.Modification
	variable []*core.Modification
}

// NewDigester resolves the protease from registry and validates params.
func NewDigester(params Params, registry *ProteaseRegistry, fixed, variable []*core.Modification) (*Digester, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digestion parameters: %w", err)
	}
	protease, err := registry.Get(params.Protease)
	if err != nil {
		return nil, err
	}
	return &Digester{params: params, protease: protease, fixed: fixed, variable: variable}, nil
}

// Params returns the digestion parameters.
func (d *Digester) Params() Params { return d.params }

// span is a half-open, zero-based interval of the protein sequence.
type span struct {
	start, end  int
	missed      int
	specificity CleavageSpecificity
}

// Digest calls fn for every peptide of protein, in a deterministic order, until fn returns
// false. It reports whether the sequence ran to completion. Calling Digest again restarts
// the sequence.
func (d *Digester) Digest(protein *Protein, fn func(*Peptide) bool) bool {
	for _, sp := range d.spans(protein.Sequence) {
		if !d.modify(protein, sp, fn) {
			return false
		}
	}
	return true
}

// Peptides collects the output of Digest.
func (d *Digester) Peptides(protein *Protein) []*Peptide {
	var peptides []*Peptide
	d.Digest(protein, func(p *Peptide) bool {
		peptides = append(peptides, p)
		return true
	})
	return peptides
}

func (d *Digester) spans(seq string) []span {
	if len(seq) == 0 {
		return nil
	}
	if d.protease.Specificity == None {
		return d.nonSpecificSpans(seq)
	}

	sites := d.protease.CleavageSites(seq)
	var out []span
	seen := make(map[[2]int]bool)
	add := func(s, e, missed int, spec CleavageSpecificity) {
		key := [2]int{s, e}
		if e <= s || seen[key] || !d.params.lengthOK(e-s) {
			return
		}
		seen[key] = true
		out = append(out, span{start: s, end: e, missed: missed, specificity: spec})
	}

	var full []span
	for i := 0; i < len(sites)-1; i++ {
		for mc := 0; mc <= d.params.MaxMissedCleavages && i+mc+1 < len(sites); mc++ {
			s, e := sites[i], sites[i+mc+1]
			if s == 0 && seq[0] == 'M' {
				if d.params.InitiatorMethionine != CleaveMethionine {
					full = append(full, span{start: 0, end: e, missed: mc})
				}
				if d.params.InitiatorMethionine != RetainMethionine {
					full = append(full, span{start: 1, end: e, missed: mc})
				}
				continue
			}
			full = append(full, span{start: s, end: e, missed: mc})
		}
	}
	for _, sp := range full {
		add(sp.start, sp.end, sp.missed, Full)
	}

	if d.params.Specificity == Semi {
		for _, sp := range full {
			for e := sp.end - 1; e > sp.start; e-- {
				add(sp.start, e, internalSites(sites, sp.start, e), Semi)
			}
			for s := sp.start + 1; s < sp.end; s++ {
				add(s, sp.end, internalSites(sites, s, sp.end), Semi)
			}
		}
	}
	return out
}

func (d *Digester) nonSpecificSpans(seq string) []span {
	maxLen := d.params.MaxPeptideLength
	if maxLen == 0 {
		maxLen = nonSpecificMaxLength
	}
	var out []span
	for s := 0; s < len(seq); s++ {
		for e := s + d.params.MinPeptideLength; e <= len(seq) && e-s <= maxLen; e++ {
			out = append(out, span{start: s, end: e, specificity: None})
		}
	}
	return out
}

// internalSites counts cleavage sites strictly inside (s, e).
func internalSites(sites []int, s, e int) int {
	n := 0
	for _, site := range sites {
		if site > s && site < e {
			n++
		}
	}
	return n
}

// modOption lists the variable modifications that may occupy one key.
type modOption struct {
	key  int
	mods []*core.Modification
}

type isoformState struct {
	emitted int
	stopped bool
}

// modify emits the modification isoforms of one span: fixed modifications everywhere they
// apply, plus every combination of up to MaxModsForPeptide variable modifications, fewest
// first, capped at MaxModificationIsoforms.
func (d *Digester) modify(protein *Protein, sp span, fn func(*Peptide) bool) bool {
	n := sp.end - sp.start
	fixed := make(map[int]*core.Modification)
	var options []modOption
	for key := 1; key <= n+2; key++ {
		for _, m := range d.fixed {
			if d.applies(m, protein, sp, key) {
				fixed[key] = m
				break
			}
		}
		if fixed[key] != nil {
			continue
		}
		var opt modOption
		for _, m := range d.variable {
			if d.applies(m, protein, sp, key) {
				opt.mods = append(opt.mods, m)
			}
		}
		if len(opt.mods) > 0 {
			opt.key = key
			options = append(options, opt)
		}
	}

	state := &isoformState{}
	emit := func(variable map[int]*core.Modification) bool {
		var mods map[int]*core.Modification
		if len(fixed)+len(variable) > 0 {
			mods = make(map[int]*core.Modification, len(fixed)+len(variable))
			for k, m := range fixed {
				mods[k] = m
			}
			for k, m := range variable {
				mods[k] = m
			}
		}
		if !fn(NewPeptide(protein, sp.start+1, sp.end, sp.missed, sp.specificity, mods)) {
			state.stopped = true
			return false
		}
		state.emitted++
		return state.emitted < d.params.MaxModificationIsoforms
	}

	current := make(map[int]*core.Modification)
	for k := 0; k <= d.params.MaxModsForPeptide && k <= len(options); k++ {
		if !combine(options, 0, k, current, emit) {
			break
		}
	}
	return !state.stopped
}

func combine(options []modOption, from, remaining int, current map[int]*core.Modification, emit func(map[int]*core.Modification) bool) bool {
	if remaining == 0 {
		return emit(current)
	}
	for i := from; i <= len(options)-remaining; i++ {
		for _, m := range options[i].mods {
			current[options[i].key] = m
			ok := combine(options, i+1, remaining-1, current, emit)
			delete(current, options[i].key)
			if !ok {
				return false
			}
		}
	}
	return true
}

// applies reports whether m may occupy the given "one is N-terminus" key of span sp.
func (d *Digester) applies(m *core.Modification, protein *Protein, sp span, key int) bool {
	seq := protein.Sequence
	n := sp.end - sp.start
	switch m.Location {
	case core.Anywhere:
		return key >= 2 && key <= n+1 && m.Matches(seq[sp.start+key-2])
	case core.PeptideNTerm:
		return key == 1 && m.Matches(seq[sp.start])
	case core.ProteinNTerm:
		atStart := sp.start == 0 || (sp.start == 1 && seq[0] == 'M')
		return key == 1 && atStart && m.Matches(seq[sp.start])
	case core.PeptideCTerm:
		return key == n+2 && m.Matches(seq[sp.end-1])
	case core.ProteinCTerm:
		return key == n+2 && sp.end == len(seq) && m.Matches(seq[sp.end-1])
	}
	return false
}
