// Package digestion turns proteins into peptide candidates and peptides into theoretical
// product ions.
package digestion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProtease is returned when a protease name is not registered.
var ErrUnknownProtease = errors.New("unknown protease")

// CleavageSpecificity describes how a peptide's termini relate to protease sites.
type CleavageSpecificity int

const (
	Full CleavageSpecificity = iota
	Semi
	None
)

func (c CleavageSpecificity) String() string {
	switch c {
	case Full:
		return "full"
	case Semi:
		return "semi"
	}
	return "none"
}

// Motif is one cleavage rule. Residue is cut on the side given by CutBefore; the cut is
// suppressed when the residue on the far side of the cut is in Prevent.
type Motif struct {
	Residue   byte
	CutBefore bool
	Prevent   string
}

// ParseMotif parses "K|", "K|[P]", "|D" or "[P]|D"-style cleavage rules.
func ParseMotif(s string) (Motif, error) {
	s = strings.TrimSpace(s)
	bar := strings.IndexByte(s, '|')
	if bar < 0 {
		return Motif{}, fmt.Errorf("cleavage motif %q has no cut marker '|'", s)
	}
	left, right := s[:bar], s[bar+1:]
	var m Motif
	switch {
	case isResidue(left) && (right == "" || isPrevent(right)):
		m.Residue = left[0]
		if right != "" {
			m.Prevent = right[1 : len(right)-1]
		}
	case isResidue(right) && (left == "" || isPrevent(left)):
		m.Residue = right[0]
		m.CutBefore = true
		if left != "" {
			m.Prevent = left[1 : len(left)-1]
		}
	default:
		return Motif{}, fmt.Errorf("cannot parse cleavage motif %q", s)
	}
	return m, nil
}

// String formats the motif in the syntax accepted by ParseMotif.
func (m Motif) String() string {
	prevent := ""
	if m.Prevent != "" {
		prevent = "[" + m.Prevent + "]"
	}
	if m.CutBefore {
		return prevent + "|" + string(m.Residue)
	}
	return string(m.Residue) + "|" + prevent
}

func isResidue(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}

func isPrevent(s string) bool {
	return len(s) >= 3 && s[0] == '[' && s[len(s)-1] == ']'
}

// cutsAt reports whether the motif cuts between seq[i-1] and seq[i].
func (m Motif) cutsAt(seq string, i int) bool {
	if m.CutBefore {
		if seq[i] != m.Residue {
			return false
		}
		return m.Prevent == "" || strings.IndexByte(m.Prevent, seq[i-1]) < 0
	}
	if seq[i-1] != m.Residue {
		return false
	}
	return m.Prevent == "" || strings.IndexByte(m.Prevent, seq[i]) < 0
}

// Protease is a named set of cleavage motifs.
type Protease struct {
	Name        string
	Motifs      []Motif
	Specificity CleavageSpecificity // None: cuts everywhere (non-specific); Full otherwise
}

// NoCleavage returns true for proteases that never cut (top-down).
func (p *Protease) NoCleavage() bool {
	return p.Specificity == Full && len(p.Motifs) == 0
}

// CleavageSites returns the cut positions in seq including 0 and len(seq), ascending.
// Position i means the bond between seq[i-1] and seq[i].
func (p *Protease) CleavageSites(seq string) []int {
	sites := []int{0}
	for i := 1; i < len(seq); i++ {
		if p.Specificity == None {
			sites = append(sites, i)
			continue
		}
		for _, m := range p.Motifs {
			if m.cutsAt(seq, i) {
				sites = append(sites, i)
				break
			}
		}
	}
	if len(seq) > 0 {
		sites = append(sites, len(seq))
	}
	return sites
}

// ProteaseRegistry holds proteases by name. It is created per run and passed down.
type ProteaseRegistry struct {
	proteases map[string]*Protease
}

// NewProteaseRegistry returns a registry pre-loaded with the common proteases.
func NewProteaseRegistry() *ProteaseRegistry {
	r := &ProteaseRegistry{proteases: make(map[string]*Protease)}
	for _, def := range []struct{ name, motifs string }{
		{"trypsin", "K|[P],R|[P]"},
		{"trypsin|P", "K|,R|"},
		{"Lys-C (don't cleave before proline)", "K|[P]"},
		{"Lys-C (cleave before proline)", "K|"},
		{"Lys-N", "|K"},
		{"Arg-C", "R|[P]"},
		{"Asp-N", "|D"},
		{"Glu-C", "E|[P]"},
		{"Glu-C (with asp)", "E|[P],D|[P]"},
		{"chymotrypsin (don't cleave before proline)", "F|[P],W|[P],Y|[P]"},
		{"chymotrypsin (cleave before proline)", "F|,W|,Y|"},
		{"CNBr", "M|"},
		{"top-down", ""},
	} {
		if err := r.RegisterMotifs(def.name, def.motifs); err != nil {
			panic(err)
		}
	}
	r.Register(&Protease{Name: "non-specific", Specificity: None})
	return r
}

// Register adds or replaces a protease.
func (r *ProteaseRegistry) Register(p *Protease) {
	r.proteases[p.Name] = p
}

// RegisterMotifs adds a fully specific protease from a comma-separated motif list.
func (r *ProteaseRegistry) RegisterMotifs(name, motifs string) error {
	p := &Protease{Name: name}
	for _, s := range strings.Split(motifs, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		m, err := ParseMotif(s)
		if err != nil {
			return fmt.Errorf("protease %s: %w", name, err)
		}
		p.Motifs = append(p.Motifs, m)
	}
	r.Register(p)
	return nil
}

// Get returns the named protease or ErrUnknownProtease.
func (r *ProteaseRegistry) Get(name string) (*Protease, error) {
	p, ok := r.proteases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtease, name)
	}
	return p, nil
}

// Names lists the registered proteases in sorted order.
func (r *ProteaseRegistry) Names() []string {
	names := make([]string, 0, len(r.proteases))
	for n := range r.proteases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
