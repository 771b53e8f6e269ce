package digestion

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

func newTestDigester(t *testing.T, params Params, fixed, variable []*core.Modification) *Digester {
	t.Helper()
	d, err := NewDigester(params, NewProteaseRegistry(), fixed, variable)
	if err != nil {
		t.Fatalf("NewDigester() error = %v", err)
	}
	return d
}

func fullSequences(peptides []*Peptide) []string {
	var out []string
	for _, p := range peptides {
		out = append(out, p.FullSequence())
	}
	sort.Strings(out)
	return out
}

func TestDigestInitiatorMethionine(t *testing.T) {
	protein := &Protein{Accession: "P1", Sequence: "MNNNKQQQ"}
	tests := []struct {
		name string
		init InitiatorMethionine
		want []string
	}{
		{"variable", VariableMethionine, []string{"MNNNK", "MNNNKQQQ", "NNNK", "NNNKQQQ", "QQQ"}},
		{"retain", RetainMethionine, []string{"MNNNK", "MNNNKQQQ", "QQQ"}},
		{"cleave", CleaveMethionine, []string{"NNNK", "NNNKQQQ", "QQQ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			params.MinPeptideLength = 1
			params.InitiatorMethionine = tt.init
			got := fullSequences(newTestDigester(t, params, nil, nil).Peptides(protein))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Peptides() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDigestMissedCleavagesAndLength(t *testing.T) {
	protein := &Protein{Accession: "P1", Sequence: "AAKBBRPCCRDD"}
	params := DefaultParams()
	params.MinPeptideLength = 2
	params.MaxPeptideLength = 9
	params.MaxMissedCleavages = 1

	got := map[string]int{}
	for _, p := range newTestDigester(t, params, nil, nil).Peptides(protein) {
		got[p.BaseSequence()] = p.MissedCleavages()
	}
	// RP is not a trypsin site; AAKBBRPCCR is longer than the max length.
	want := map[string]int{"AAK": 0, "BBRPCCR": 0, "BBRPCCRDD": 1, "DD": 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("missed cleavages mismatch (-want +got):\n%s", diff)
	}
}

func TestDigestSemiSpecific(t *testing.T) {
	protein := &Protein{Accession: "P1", Sequence: "ACDEFK"}
	params := DefaultParams()
	params.MinPeptideLength = 4
	params.Specificity = Semi

	got := map[string]CleavageSpecificity{}
	for _, p := range newTestDigester(t, params, nil, nil).Peptides(protein) {
		got[p.BaseSequence()] = p.Specificity()
	}
	want := map[string]CleavageSpecificity{
		"ACDEFK": Full,
		"ACDEF":  Semi,
		"ACDE":   Semi,
		"CDEFK":  Semi,
		"DEFK":   Semi,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("semi digestion mismatch (-want +got):\n%s", diff)
	}
}

func TestDigestModifications(t *testing.T) {
	db := core.DefaultModDatabase()
	fixed, _ := db.Lookup("Carbamidomethyl on C")
	variable, _ := db.Lookup("Oxidation on M;Acetylation on X")

	protein := &Protein{Accession: "P1", Sequence: "MCMK"}
	params := DefaultParams()
	params.MinPeptideLength = 1
	params.InitiatorMethionine = RetainMethionine
	params.MaxModsForPeptide = 2

	got := fullSequences(newTestDigester(t, params, fixed, variable).Peptides(protein))
	want := []string{
		"MC[Carbamidomethyl on C]M[Oxidation on M]K",
		"MC[Carbamidomethyl on C]MK",
		"M[Oxidation on M]C[Carbamidomethyl on C]M[Oxidation on M]K",
		"M[Oxidation on M]C[Carbamidomethyl on C]MK",
		"[Acetylation on X]MC[Carbamidomethyl on C]M[Oxidation on M]K",
		"[Acetylation on X]MC[Carbamidomethyl on C]MK",
		"[Acetylation on X]M[Oxidation on M]C[Carbamidomethyl on C]MK",
	}
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("isoforms mismatch (-want +got):\n%s", diff)
	}
}

func TestDigestIsoformCap(t *testing.T) {
	db := core.DefaultModDatabase()
	variable, _ := db.Lookup("Oxidation on M")
	protein := &Protein{Accession: "P1", Sequence: "MMMMMMK"}
	params := DefaultParams()
	params.MinPeptideLength = 1
	params.InitiatorMethionine = RetainMethionine
	params.MaxModsForPeptide = 3
	params.MaxModificationIsoforms = 4

	peptides := newTestDigester(t, params, nil, variable).Peptides(protein)
	if len(peptides) != 4 {
		t.Fatalf("got %d isoforms, want 4", len(peptides))
	}
	if peptides[0].NumMods() != 0 {
		t.Errorf("first isoform has %d mods, want the unmodified form first", peptides[0].NumMods())
	}
}

func TestDigestStopsEarly(t *testing.T) {
	protein := &Protein{Accession: "P1", Sequence: "AAKCCKDDKEEK"}
	params := DefaultParams()
	params.MinPeptideLength = 1
	d := newTestDigester(t, params, nil, nil)

	count := 0
	complete := d.Digest(protein, func(*Peptide) bool {
		count++
		return count < 2
	})
	if complete || count != 2 {
		t.Errorf("Digest() complete=%v count=%d, want false and 2", complete, count)
	}

	// restartable
	if n := len(d.Peptides(protein)); n != 9 {
		t.Errorf("second pass produced %d peptides, want 9", n)
	}
}

func TestUnknownResidueGivesNaNMass(t *testing.T) {
	protein := &Protein{Accession: "P1", Sequence: "MQXQ"}
	params := DefaultParams()
	params.MinPeptideLength = 1
	params.InitiatorMethionine = RetainMethionine
	peptides := newTestDigester(t, params, nil, nil).Peptides(protein)
	if len(peptides) != 1 {
		t.Fatalf("got %d peptides, want 1", len(peptides))
	}
	if !math.IsNaN(peptides[0].MonoisotopicMass()) {
		t.Errorf("mass = %v, want NaN", peptides[0].MonoisotopicMass())
	}
}

func TestNewDigesterErrors(t *testing.T) {
	params := DefaultParams()
	params.Protease = "nope"
	if _, err := NewDigester(params, NewProteaseRegistry(), nil, nil); !errors.Is(err, ErrUnknownProtease) {
		t.Errorf("NewDigester() error = %v, want ErrUnknownProtease", err)
	}

	params = DefaultParams()
	params.MinPeptideLength = 10
	params.MaxPeptideLength = 5
	if _, err := NewDigester(params, NewProteaseRegistry(), nil, nil); err == nil {
		t.Error("NewDigester() expected error for inverted length bounds")
	}
}

func TestPeptideOrigin(t *testing.T) {
	tests := []struct {
		name               string
		protein            *Protein
		decoy, contaminant bool
	}{
		{"target", &Protein{Accession: "T"}, false, false},
		{"contaminant", &Protein{Accession: "C", IsContaminant: true}, false, true},
		{"decoy", &Protein{Accession: "DECOY_T", IsDecoy: true}, true, false},
		{"decoy of contaminant", &Protein{Accession: "DECOY_C", IsDecoy: true, IsContaminant: true}, true, false},
		{"no protein", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Peptide{protein: tt.protein}
			if got := p.IsDecoy(); got != tt.decoy {
				t.Errorf("IsDecoy() = %v, want %v", got, tt.decoy)
			}
			if got := p.IsContaminant(); got != tt.contaminant {
				t.Errorf("IsContaminant() = %v, want %v", got, tt.contaminant)
			}
		})
	}
}
