package digestion

import "fmt"

// Protein is an entry of the protein database.
type Protein struct {
	Accession     string
	Name          string
	Organism      string
	Sequence      string
	IsDecoy       bool
	IsContaminant bool
}

// InitiatorMethionine controls how a leading methionine is treated.
type InitiatorMethionine int

const (
	VariableMethionine InitiatorMethionine = iota
	RetainMethionine
	CleaveMethionine
)

func (m InitiatorMethionine) String() string {
	switch m {
	case RetainMethionine:
		return "Retain"
	case CleaveMethionine:
		return "Cleave"
	}
	return "Variable"
}

// ParseInitiatorMethionine parses Retain, Cleave or Variable.
func ParseInitiatorMethionine(s string) (InitiatorMethionine, error) {
	for _, m := range []InitiatorMethionine{VariableMethionine, RetainMethionine, CleaveMethionine} {
		if s == m.String() {
			return m, nil
		}
	}
	return VariableMethionine, fmt.Errorf("unknown initiator methionine behavior %q", s)
}

// FragmentationTerminus restricts which product ion series are generated.
type FragmentationTerminus int

const (
	BothTermini FragmentationTerminus = iota
	NTerminus
	CTerminus
)

// Params configures digestion.
type Params struct {
	Protease                string
	MaxMissedCleavages      int
	MinPeptideLength        int
	MaxPeptideLength        int // 0 = unlimited
	InitiatorMethionine     InitiatorMethionine
	MaxModificationIsoforms int
	MaxModsForPeptide       int
	Specificity             CleavageSpecificity // Full or Semi
}

// DefaultParams returns trypsin with two missed cleavages, peptide length 7..50, variable
// initiator methionine, at most two variable mods and 1024 isoforms per peptide.
func DefaultParams() Params {
	return Params{
		Protease:                "trypsin",
		MaxMissedCleavages:      2,
		MinPeptideLength:        7,
		MaxPeptideLength:        50,
		InitiatorMethionine:     VariableMethionine,
		MaxModificationIsoforms: 1024,
		MaxModsForPeptide:       2,
		Specificity:             Full,
	}
}

// Validate checks the numeric bounds.
func (p Params) Validate() error {
	if p.MaxMissedCleavages < 0 {
		return fmt.Errorf("max missed cleavages must be non-negative, got %d", p.MaxMissedCleavages)
	}
	if p.MinPeptideLength < 1 {
		return fmt.Errorf("min peptide length must be at least 1, got %d", p.MinPeptideLength)
	}
	if p.MaxPeptideLength != 0 && p.MaxPeptideLength < p.MinPeptideLength {
		return fmt.Errorf("max peptide length %d is below min peptide length %d", p.MaxPeptideLength, p.MinPeptideLength)
	}
	if p.MaxModificationIsoforms < 1 {
		return fmt.Errorf("max modification isoforms must be at least 1, got %d", p.MaxModificationIsoforms)
	}
	if p.MaxModsForPeptide < 0 {
		return fmt.Errorf("max mods for peptide must be non-negative, got %d", p.MaxModsForPeptide)
	}
	if p.Specificity == None {
		return fmt.Errorf("non-specific digestion is selected through the protease, not the specificity")
	}
	return nil
}

func (p Params) lengthOK(n int) bool {
	return n >= p.MinPeptideLength && (p.MaxPeptideLength == 0 || n <= p.MaxPeptideLength)
}
