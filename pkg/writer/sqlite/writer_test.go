package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

func testMatch(scan int, candidates ...*digestion.Peptide) *psm.SpectralMatch {
	info := psm.ScanInfo{
		FilePath:        "run.mzML",
		ScanNumber:      scan,
		PrecursorMass:   candidates[0].MonoisotopicMass() + 0.001,
		PrecursorMZ:     500,
		PrecursorCharge: 2,
	}
	ions := []psm.MatchedIon{
		{Product: digestion.Product{Type: digestion.B, FragmentNumber: 2, NeutralMass: 226.1066}, ObservedMZ: 227.114, Intensity: 10, Charge: 1},
		{Product: digestion.Product{Type: digestion.Y, FragmentNumber: 1, NeutralMass: 146.1055}, ObservedMZ: 147.1128, Intensity: 20, Charge: 1},
	}
	m := psm.New(psm.PeptideMatch, info, 12.5, psm.Hypothesis{Candidate: candidates[0], Ions: ions})
	for _, c := range candidates[1:] {
		m.AddOrReplace(psm.Hypothesis{Candidate: c, Ions: ions}, 12.5, true)
	}
	m.ResolveAllAmbiguities()
	return m
}

func peptide(accession, sequence string, decoy bool) *digestion.Peptide {
	protein := &digestion.Protein{Accession: accession, Sequence: sequence, IsDecoy: decoy}
	return digestion.NewPeptide(protein, 1, len(sequence), 0, digestion.Full, nil)
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.psmdb")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	confident := testMatch(7, peptide("P1", "PEPTIDEK", false))
	confident.Fdr = &psm.FdrInfo{CumulativeTarget: 1, QValue: 0, QValueNotch: 0, PEP: 0.01, PEPQValue: 0.01}
	ambiguous := testMatch(8, peptide("P2", "AAAK", false), peptide("DECOY_P3", "KAAA", true))

	for _, m := range []*psm.SpectralMatch{confident, ambiguous} {
		if err := w.WriteMatch(m); err != nil {
			t.Fatalf("WriteMatch() error = %v", err)
		}
	}
	w.SetHeader(Header{
		Software:    "mmsearch",
		SpectraFile: "run.mzML",
		Database:    "db.fasta",
		Parameters:  map[string]string{"protease": "trypsin", "dissociation": "HCD"},
		Targets:     1.5,
		Decoys:      0.5,
		Warnings:    []string{"only 2 matches"},
	})
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	type row struct {
		Scan         int
		FullSequence sql.NullString
		Notch        sql.NullInt64
		Hypotheses   int
		IsDecoy      bool
		QValue       sql.NullFloat64
		Annotations  string
	}
	rows, err := db.Query(`SELECT ScanNumber, FullSequence, Notch, Hypotheses, IsDecoy, QValue, IonAnnotations FROM PsmTable ORDER BY PsmId`)
	if err != nil {
		t.Fatal(err)
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.Scan, &r.FullSequence, &r.Notch, &r.Hypotheses, &r.IsDecoy, &r.QValue, &r.Annotations); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	rows.Close()
	want := []row{
		{Scan: 7, FullSequence: sql.NullString{String: "PEPTIDEK", Valid: true}, Notch: sql.NullInt64{Valid: true}, Hypotheses: 1, QValue: sql.NullFloat64{Valid: true}, Annotations: "b2+1;y1+1"},
		{Scan: 8, Notch: sql.NullInt64{Valid: true}, Hypotheses: 2, IsDecoy: true, Annotations: "b2+1;y1+1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PsmTable mismatch (-want +got):\n%s", diff)
	}

	var blob []byte
	if err := db.QueryRow(`SELECT blobIntensity FROM PsmTable WHERE ScanNumber = 7`).Scan(&blob); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{10, 20}, DecodeBlob(blob)); diff != "" {
		t.Errorf("intensity blob mismatch (-want +got):\n%s", diff)
	}

	var hypotheses int
	if err := db.QueryRow(`SELECT COUNT(*) FROM HypothesisTable WHERE PsmId = 2`).Scan(&hypotheses); err != nil {
		t.Fatal(err)
	}
	if hypotheses != 2 {
		t.Errorf("HypothesisTable has %d rows for the ambiguous match, want 2", hypotheses)
	}

	var params, warnings string
	var psms int
	if err := db.QueryRow(`SELECT Parameters, Warnings FROM HeaderTable`).Scan(&params, &warnings); err != nil {
		t.Fatal(err)
	}
	if params != "dissociation=HCD\nprotease=trypsin\n" || warnings != "only 2 matches" {
		t.Errorf("header = %q, %q", params, warnings)
	}
	if err := db.QueryRow(`SELECT NoofPsms FROM MaintenanceTable`).Scan(&psms); err != nil {
		t.Fatal(err)
	}
	if psms != 2 {
		t.Errorf("NoofPsms = %d, want 2", psms)
	}
}
