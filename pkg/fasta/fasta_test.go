package fasta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

const database = `>sp|P02769|ALBU_BOVIN Albumin OS=Bos taurus OX=9913 GN=ALB PE=1 SV=4
MKWVTFISLL
LLFSSAYSR
>custom_1 a plain header
PEPTIDEK*
`

func writeDatabase(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.fasta")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFile(t *testing.T) {
	path := writeDatabase(t, database)
	proteins, err := ReadFile(path, Options{Decoys: ReverseDecoys})
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := []*digestion.Protein{
		{Accession: "P02769", Name: "Albumin", Organism: "Bos taurus", Sequence: "MKWVTFISLLLLFSSAYSR"},
		{Accession: "custom_1", Name: "a plain header", Sequence: "PEPTIDEK"},
		{Accession: "DECOY_P02769", Name: "Albumin", Organism: "Bos taurus", Sequence: "MRSYASSFLLLLSIFTVWK", IsDecoy: true},
		{Accession: "DECOY_custom_1", Name: "a plain header", Sequence: "KEDITPEP", IsDecoy: true},
	}
	if diff := cmp.Diff(want, proteins); diff != "" {
		t.Errorf("ReadFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFileContaminants(t *testing.T) {
	path := writeDatabase(t, ">CON_1\nAAAK\n")
	proteins, err := ReadFile(path, Options{Decoys: ReverseDecoys, Contaminant: true, DecoyPrefix: "REV_"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proteins) != 2 {
		t.Fatalf("got %d proteins, want 2", len(proteins))
	}
	if !proteins[0].IsContaminant || proteins[0].IsDecoy {
		t.Errorf("target = %+v, want a contaminant", proteins[0])
	}
	want := &digestion.Protein{Accession: "REV_CON_1", Sequence: "KAAA", IsDecoy: true}
	if diff := cmp.Diff(want, proteins[1]); diff != "" {
		t.Errorf("decoy of a contaminant mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "none.fasta"), Options{}); err == nil {
		t.Error("ReadFile() of a missing file succeeded")
	}
}

func TestReverse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"M", "M"},
		{"MK", "MK"},
		{"MABCK", "MKCBA"},
		{"ABCK", "KCBA"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Reverse(tt.in); got != tt.want {
				t.Errorf("Reverse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDecoyType(t *testing.T) {
	for in, want := range map[string]DecoyType{"none": NoDecoys, "Reverse": ReverseDecoys, "": NoDecoys} {
		got, err := ParseDecoyType(in)
		if err != nil || got != want {
			t.Errorf("ParseDecoyType(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDecoyType("shuffle"); err == nil {
		t.Error("ParseDecoyType(shuffle) succeeded")
	}
}
