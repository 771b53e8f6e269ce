package digestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// Peptide is a digestion product with a fixed set of modifications. Peptides are
// immutable once created and safe for concurrent use.
//
// Modification keys follow the "one is N-terminus" convention: key 1 is the N-terminus,
// residue i (one-based) is key i+1 and the C-terminus is len+2.
type Peptide struct {
	protein         *Protein
	baseSequence    string
	start, end      int
	missedCleavages int
	specificity     CleavageSpecificity
	mods            map[int]*core.Modification
	fullSequence    string
	mass            float64
}

// NewPeptide creates the peptide covering protein residues start..end (one-based,
// inclusive). mods may be nil.
func NewPeptide(protein *Protein, start, end, missedCleavages int, specificity CleavageSpecificity, mods map[int]*core.Modification) *Peptide {
	p := &Peptide{
		protein:         protein,
		baseSequence:    protein.Sequence[start-1 : end],
		start:           start,
		end:             end,
		missedCleavages: missedCleavages,
		specificity:     specificity,
		mods:            mods,
	}
	p.fullSequence = p.buildFullSequence()

	modMasses := make([]float64, 0, len(mods))
	for _, m := range mods {
		modMasses = append(modMasses, m.Mass)
	}
	p.mass = core.CalculateNeutralMass(p.baseSequence, modMasses)
	return p
}

func (p *Peptide) buildFullSequence() string {
	if len(p.mods) == 0 {
		return p.baseSequence
	}
	var b strings.Builder
	n := len(p.baseSequence)
	if m := p.mods[1]; m != nil {
		b.WriteString("[" + m.ID() + "]")
	}
	for i := 0; i < n; i++ {
		b.WriteByte(p.baseSequence[i])
		if m := p.mods[i+2]; m != nil {
			b.WriteString("[" + m.ID() + "]")
		}
	}
	if m := p.mods[n+2]; m != nil {
		b.WriteString("-[" + m.ID() + "]")
	}
	return b.String()
}

func (p *Peptide) Protein() *Protein         { return p.protein }
func (p *Peptide) BaseSequence() string      { return p.baseSequence }
func (p *Peptide) FullSequence() string      { return p.fullSequence }
func (p *Peptide) MonoisotopicMass() float64 { return p.mass }
func (p *Peptide) OneBasedStartResidue() int { return p.start }
func (p *Peptide) OneBasedEndResidue() int   { return p.end }
func (p *Peptide) MissedCleavages() int      { return p.missedCleavages }
func (p *Peptide) Length() int               { return len(p.baseSequence) }
func (p *Peptide) NumMods() int              { return len(p.mods) }
func (p *Peptide) HasParent() bool           { return p.protein != nil }

func (p *Peptide) Specificity() CleavageSpecificity { return p.specificity }

// ModAt returns the modification at a "one is N-terminus" key, or nil.
func (p *Peptide) ModAt(key int) *core.Modification { return p.mods[key] }

// ModKeys returns the occupied modification keys in ascending order.
func (p *Peptide) ModKeys() []int {
	keys := make([]int, 0, len(p.mods))
	for k := range p.mods {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (p *Peptide) Accession() string {
	if p.protein == nil {
		return ""
	}
	return p.protein.Accession
}

func (p *Peptide) IsDecoy() bool { return p.protein != nil && p.protein.IsDecoy }

// IsContaminant is false for decoys, even when the protein is flagged as a contaminant.
func (p *Peptide) IsContaminant() bool {
	return p.protein != nil && p.protein.IsContaminant && !p.protein.IsDecoy
}

// Key identifies a peptide by full sequence, parent and position.
func (p *Peptide) Key() string {
	return fmt.Sprintf("%s|%s|%d", p.fullSequence, p.Accession(), p.start)
}

func (p *Peptide) String() string {
	return fmt.Sprintf("%s (%s %d-%d)", p.fullSequence, p.Accession(), p.start, p.end)
}
