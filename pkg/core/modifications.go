package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ModLocation restricts where a modification may be placed.
type ModLocation int

const (
	Anywhere ModLocation = iota
	PeptideNTerm
	PeptideCTerm
	ProteinNTerm
	ProteinCTerm
)

var modLocationNames = map[ModLocation]string{
	Anywhere:     "Anywhere",
	PeptideNTerm: "Peptide N-terminal",
	PeptideCTerm: "Peptide C-terminal",
	ProteinNTerm: "N-terminal",
	ProteinCTerm: "C-terminal",
}

func (l ModLocation) String() string { return modLocationNames[l] }

// IsNTerminal reports whether the location sits on the peptide N-terminus.
func (l ModLocation) IsNTerminal() bool { return l == PeptideNTerm || l == ProteinNTerm }

// IsCTerminal reports whether the location sits on the peptide C-terminus.
func (l ModLocation) IsCTerminal() bool { return l == PeptideCTerm || l == ProteinCTerm }

// ParseModLocation accepts the names produced by String plus a few short forms.
func ParseModLocation(s string) (ModLocation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anywhere", "anywhere.":
		return Anywhere, nil
	case "peptide n-terminal", "peptide n-terminal.", "pepnterm", "nterm":
		return PeptideNTerm, nil
	case "peptide c-terminal", "peptide c-terminal.", "pepcterm", "cterm":
		return PeptideCTerm, nil
	case "n-terminal", "n-terminal.", "protnterm":
		return ProteinNTerm, nil
	case "c-terminal", "c-terminal.", "protcterm":
		return ProteinCTerm, nil
	}
	return Anywhere, fmt.Errorf("unknown modification location %q", s)
}

// Modification describes a mass shift that may be placed on a residue or terminus.
// Target 'X' matches any residue.
type Modification struct {
	Name        string
	Target      byte
	Location    ModLocation
	Mass        float64
	NeutralLoss float64 // lost under collisional dissociation; 0 = none
}

// ID returns the identifier used in full sequences, e.g. "Oxidation on M".
func (m *Modification) ID() string {
	return m.Name + " on " + string(m.Target)
}

// Matches reports whether the modification may sit on residue aa.
func (m *Modification) Matches(aa byte) bool {
	return m.Target == 'X' || m.Target == aa
}

// ModDatabase stores modification definitions keyed by ID
type ModDatabase struct {
	mods map[string]*Modification
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]*Modification),
	}
}

// LoadFromCSV loads modifications from a CSV file
// (format: mod,massshift,aa[,location[,neutralloss]]). Multiple residues may be given as
// "STY" and produce one definition per residue.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			return fmt.Errorf("line %d: invalid format, expected at least 3 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])
		residues := strings.ToUpper(strings.TrimSpace(parts[2]))

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		if modName == "" || residues == "" {
			return fmt.Errorf("line %d: modification name and residue are required", lineNum)
		}

		loc := Anywhere
		if len(parts) > 3 {
			if loc, err = ParseModLocation(parts[3]); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		var loss float64
		if len(parts) > 4 && strings.TrimSpace(parts[4]) != "" {
			if loss, err = strconv.ParseFloat(strings.TrimSpace(parts[4]), 64); err != nil {
				return fmt.Errorf("line %d: invalid neutral loss '%s': %w", lineNum, parts[4], err)
			}
		}

		for i := 0; i < len(residues); i++ {
			db.Add(&Modification{Name: modName, Target: residues[i], Location: loc, Mass: mass, NeutralLoss: loss})
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Get returns the modification registered under id ("Name on T")
func (db *ModDatabase) Get(id string) (*Modification, bool) {
	mod, ok := db.mods[id]
	return mod, ok
}

// GetMass returns the mass shift for a modification id
func (db *ModDatabase) GetMass(id string) (float64, bool) {
	mod, ok := db.mods[id]
	if !ok {
		return 0, false
	}
	return mod.Mass, true
}

// Add adds or updates a modification
func (db *ModDatabase) Add(mod *Modification) {
	db.mods[mod.ID()] = mod
}

// IDs returns all registered ids in sorted order.
func (db *ModDatabase) IDs() []string {
	ids := make([]string, 0, len(db.mods))
	for id := range db.mods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup resolves a list of ids separated by ';' or ',' such as
// "Oxidation on M;Carbamidomethyl on C".
func (db *ModDatabase) Lookup(list string) ([]*Modification, error) {
	var mods []*Modification
	for _, id := range strings.FieldsFunc(list, func(r rune) bool { return r == ';' || r == ',' }) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		mod, ok := db.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown modification '%s'", id)
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	add := func(name string, mass float64, residues string, loc ModLocation) {
		for i := 0; i < len(residues); i++ {
			db.Add(&Modification{Name: name, Target: residues[i], Location: loc, Mass: mass})
		}
	}

	// Common modifications from unimod
	add("Carbamidomethyl", 57.021464, "CU", Anywhere)
	add("Oxidation", 15.994915, "M", Anywhere)
	add("Deamidation", 0.984016, "NQ", Anywhere)
	add("Acetylation", 42.010565, "X", ProteinNTerm)
	add("Acetylation", 42.010565, "K", Anywhere)
	add("Amidation", -0.984016, "X", PeptideCTerm)
	add("Carbamyl", 43.005814, "K", Anywhere)
	add("Carbamyl", 43.005814, "X", PeptideNTerm)
	add("Methylation", 14.01565, "KR", Anywhere)
	add("Dimethylation", 28.0313, "KR", Anywhere)
	add("Trimethylation", 42.04695, "K", Anywhere)
	add("Pyro-glu from Q", -17.026549, "Q", PeptideNTerm)
	add("Pyro-glu from E", -18.010565, "E", PeptideNTerm)
	add("Pyro-carbamidomethyl", 39.994915, "C", PeptideNTerm)
	add("Sulfonation", 79.956815, "Y", Anywhere)
	add("HexNAc", 203.079373, "ST", Anywhere)
	add("Propionamide", 71.037114, "C", Anywhere)
	add("Methylthio", 45.987721, "C", Anywhere)
	add("TMT6plex", 229.162932, "K", Anywhere)
	add("TMT6plex", 229.162932, "X", PeptideNTerm)
	add("TMTpro", 304.207146, "K", Anywhere)
	add("TMTpro", 304.207146, "X", PeptideNTerm)
	add("iTRAQ4plex", 144.102063, "K", Anywhere)
	add("iTRAQ4plex", 144.102063, "X", PeptideNTerm)

	for _, aa := range "STY" {
		db.Add(&Modification{Name: "Phosphorylation", Target: byte(aa), Location: Anywhere,
			Mass: 79.966331, NeutralLoss: 97.976896})
	}

	return db
}
