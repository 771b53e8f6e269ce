package index

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

func testParams() Params {
	p := DefaultParams()
	p.Digestion.Protease = "Lys-C (cleave before proline)"
	p.Digestion.MinPeptideLength = 1
	p.MaxFragmentMassBin = MaxBinForMass(2000)
	return p
}

func TestBuildDigestsAndIndexes(t *testing.T) {
	proteins := []*digestion.Protein{{Accession: "P1", Sequence: "MNNNKQQQ"}}
	params := testParams()

	res, err := Build(context.Background(), proteins, nil, nil, params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var got []string
	for _, p := range res.Peptides {
		got = append(got, p.FullSequence())
	}
	sort.Strings(got)
	want := []string{"MNNNK", "MNNNKQQQ", "NNNK", "NNNKQQQ", "QQQ"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("peptides mismatch (-want +got):\n%s", diff)
	}

	if res.Fragment.Len() != params.MaxFragmentMassBin+1 {
		t.Errorf("fragment index length = %d, want %d", res.Fragment.Len(), params.MaxFragmentMassBin+1)
	}
	if res.Precursor != nil {
		t.Error("precursor index built without being requested")
	}

	for i := 1; i < len(res.Peptides); i++ {
		if res.Peptides[i].MonoisotopicMass() < res.Peptides[i-1].MonoisotopicMass() {
			t.Fatalf("peptides not sorted by mass at %d", i)
		}
	}
}

// Every fragment with a positive mass inside the index range is found in its bucket.
func TestIndexCompleteness(t *testing.T) {
	db := core.DefaultModDatabase()
	fixed, _ := db.Lookup("Carbamidomethyl on C")
	variable, _ := db.Lookup("Oxidation on M")
	proteins := []*digestion.Protein{
		{Accession: "P1", Sequence: "MACDEFGHIKLMNPQRSTVWYK"},
		{Accession: "P2", Sequence: "PEPTIDEKMMCKAAAAR"},
		{Accession: "P3", Sequence: "GGGGGGGGGGGGGGGGGGGGGGGGGGGGGGK"},
	}
	params := testParams()
	params.Digestion.Protease = "trypsin"
	params.MaxFragmentMassBin = MaxBinForMass(1500)

	res, err := Build(context.Background(), proteins, fixed, variable, params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	opts := digestion.NewFragmentOptions(core.HCD, digestion.BothTermini, nil)
	checked, dropped := 0, 0
	for id, p := range res.Peptides {
		for _, prod := range p.Fragment(opts, nil) {
			b := MassBin(prod.NeutralMass)
			if prod.NeutralMass <= 0 || b > params.MaxFragmentMassBin {
				dropped++
				continue
			}
			checked++
			found := false
			for _, got := range res.Fragment.Bin(b) {
				if int(got) == id {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("peptide %s fragment %s (bin %d) missing from index", p, prod.Annotation(), b)
			}
		}
	}
	if checked == 0 || dropped == 0 {
		t.Errorf("checked=%d dropped=%d, want both positive", checked, dropped)
	}

	// buckets hold ascending positions without repeats
	for b := 0; b < res.Fragment.Len(); b++ {
		ids := res.Fragment.Bin(b)
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("bin %d not strictly ascending: %v", b, ids)
			}
		}
	}
}

func TestUnknownResidueIsNotIndexed(t *testing.T) {
	proteins := []*digestion.Protein{{Accession: "P1", Sequence: "MQXQ"}}
	params := testParams()
	params.Digestion.InitiatorMethionine = digestion.RetainMethionine
	params.GeneratePrecursorIndex = true

	res, err := Build(context.Background(), proteins, nil, nil, params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Peptides) != 1 || !math.IsNaN(res.Peptides[0].MonoisotopicMass()) {
		t.Fatalf("peptides = %v, want one NaN-mass peptide", res.Peptides)
	}
	if res.Fragment.Entries() != 0 || res.Precursor.Entries() != 0 {
		t.Errorf("NaN-mass peptide indexed: fragment=%d precursor=%d", res.Fragment.Entries(), res.Precursor.Entries())
	}
	if res.Unindexed != 1 {
		t.Errorf("Unindexed = %d, want 1", res.Unindexed)
	}
}

func TestPrecursorIndex(t *testing.T) {
	proteins := []*digestion.Protein{{Accession: "P1", Sequence: "AAAKGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGK"}}
	params := testParams()
	params.MaxFragmentMassBin = MaxBinForMass(1000)
	params.GeneratePrecursorIndex = true

	res, err := Build(context.Background(), proteins, nil, nil, params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for id, p := range res.Peptides {
		b := MassBin(p.MonoisotopicMass())
		inIndex := false
		if b <= params.MaxFragmentMassBin {
			for _, got := range res.Precursor.Bin(b) {
				if int(got) == id {
					inIndex = true
				}
			}
		}
		if inIndex != (b <= params.MaxFragmentMassBin) {
			t.Errorf("peptide %s (bin %d) in precursor index = %v", p, b, inIndex)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	var proteins []*digestion.Protein
	seqs := []string{"MKWVTFISLLLLFSSAYSRGVFRRDTHK", "SEIAHRFKDLGEEHFK", "GLVLIAFSQYLQQCPFDEHVK", "LVNELTEFAK", "TCVADESHAGCEK"}
	for i, s := range seqs {
		proteins = append(proteins, &digestion.Protein{Accession: string(rune('A' + i)), Sequence: s})
	}
	params := testParams()
	params.Digestion.Protease = "trypsin"

	build := func(threads int) []string {
		params.Threads = threads
		res, err := Build(context.Background(), proteins, nil, nil, params)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		var keys []string
		for _, p := range res.Peptides {
			keys = append(keys, p.Key())
		}
		return keys
	}
	if diff := cmp.Diff(build(1), build(4)); diff != "" {
		t.Errorf("peptide order depends on thread count (-1 +4):\n%s", diff)
	}
}

func TestTargetContaminantAmbiguity(t *testing.T) {
	proteins := []*digestion.Protein{
		{Accession: "T", Sequence: "AAAKCCCK"},
		{Accession: "C", Sequence: "AAAKDDDK", IsContaminant: true},
		{Accession: "DECOY_C", Sequence: "CCCKEEEK", IsDecoy: true, IsContaminant: true},
	}
	tests := []struct {
		policy TargetContaminantAmbiguity
		want   []string
	}{
		{KeepAll, []string{"AAAK|C", "AAAK|T", "CCCK|DECOY_C", "CCCK|T", "DDDK|C", "EEEK|DECOY_C"}},
		{RemoveContaminant, []string{"AAAK|T", "CCCK|DECOY_C", "CCCK|T", "DDDK|C", "EEEK|DECOY_C"}},
		{RemoveTarget, []string{"AAAK|C", "CCCK|DECOY_C", "CCCK|T", "DDDK|C", "EEEK|DECOY_C"}},
	}
	for _, tt := range tests {
		params := testParams()
		params.Digestion.MaxMissedCleavages = 0
		params.TCAmbiguity = tt.policy
		res, err := Build(context.Background(), proteins, nil, nil, params)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		var got []string
		for _, p := range res.Peptides {
			got = append(got, p.FullSequence()+"|"+p.Accession())
		}
		sort.Strings(got)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("policy %d mismatch (-want +got):\n%s", tt.policy, diff)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	protein := &digestion.Protein{Accession: "P", Sequence: "AAAK"}
	params := testParams()
	params.Deduplicate = true
	res, err := Build(context.Background(), []*digestion.Protein{protein, protein}, nil, nil, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Peptides) != 1 {
		t.Errorf("got %d peptides, want 1 after deduplication", len(res.Peptides))
	}
}

func TestBuildErrors(t *testing.T) {
	proteins := []*digestion.Protein{{Accession: "P", Sequence: "AAAK"}}

	params := testParams()
	params.MaxFragmentMassBin = 0
	if _, err := Build(context.Background(), proteins, nil, nil, params); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Build() error = %v, want ErrInvalidParams", err)
	}

	params = testParams()
	params.Digestion.Protease = "unobtainium"
	if _, err := Build(context.Background(), proteins, nil, nil, params); !errors.Is(err, digestion.ErrUnknownProtease) {
		t.Errorf("Build() error = %v, want ErrUnknownProtease", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, proteins, nil, nil, testParams()); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestBins(t *testing.T) {
	b := newBins(4, []pair{{1, 0}, {3, 0}, {1, 2}, {0, 5}})
	if b.Len() != 4 || b.Entries() != 4 || b.NonEmpty() != 3 {
		t.Fatalf("Len=%d Entries=%d NonEmpty=%d", b.Len(), b.Entries(), b.NonEmpty())
	}
	if diff := cmp.Diff([]int32{0, 2}, b.Bin(1)); diff != "" {
		t.Errorf("Bin(1) mismatch (-want +got):\n%s", diff)
	}
	if len(b.Bin(2)) != 0 {
		t.Errorf("Bin(2) = %v, want empty", b.Bin(2))
	}
}

func TestDigestAllKeepsProteinOrder(t *testing.T) {
	var proteins []*digestion.Protein
	var want []string
	for _, seq := range []string{"AAAK", "CCCK", "DDDK", "EEEK", "FFFK", "GGGK", "HHHK"} {
		proteins = append(proteins, &digestion.Protein{Accession: seq[:1], Sequence: seq})
		want = append(want, seq)
	}
	params := testParams()
	params.Digestion.MaxMissedCleavages = 0
	d, err := digestion.NewDigester(params.Digestion, digestion.NewProteaseRegistry(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, threads := range []int{1, 3, 16} {
		var calls int
		var last int
		progress := core.ProgressFunc(func(stage string, done, total int) {
			calls++
			if done > last {
				last = done
			}
		})
		if threads > 1 {
			progress = nil
		}
		peptides, err := digestAll(context.Background(), d, proteins, threads, progress)
		if err != nil {
			t.Fatalf("threads %d: digestAll() error = %v", threads, err)
		}
		var got []string
		for _, p := range peptides {
			got = append(got, p.FullSequence())
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("threads %d: peptide order mismatch (-want +got):\n%s", threads, diff)
		}
		if threads == 1 && (calls != len(proteins) || last != len(proteins)) {
			t.Errorf("progress calls, last = %d, %d, want %d, %d", calls, last, len(proteins), len(proteins))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := digestAll(ctx, d, proteins, 2, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("digestAll() error = %v, want context.Canceled", err)
	}
}
