// Package sqlite provides SQLite database writing for search results
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"
)

// Header describes the run stored in HeaderTable.
type Header struct {
	Software    string
	Description string
	SpectraFile string
	Database    string
	Parameters  map[string]string
	Targets     float64
	Decoys      float64
	Provisional bool
	Warnings    []string
}

// Writer handles writing spectral matches to SQLite database files
type Writer struct {
	db             *sql.DB
	tx             *sql.Tx
	outputPath     string
	psmStmt        *sql.Stmt
	hypothesisStmt *sql.Stmt
	psmID          int
	header         Header
}

// NewWriter creates a new SQLite writer. Matches are written in one transaction that
// Finalize commits.
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		psmID:      1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PsmTable (
		PsmId INTEGER PRIMARY KEY,
		FilePath TEXT,
		ScanNumber INTEGER,
		ScanIndex INTEGER,
		CoisolationIndex INTEGER,
		RetentionTime DOUBLE,
		PrecursorMz DOUBLE,
		PrecursorCharge INTEGER,
		PrecursorMass DOUBLE,
		Kind TEXT,
		Score DOUBLE,
		DeltaScore DOUBLE,
		Notch INTEGER,
		BaseSequence TEXT,
		FullSequence TEXT,
		Accession TEXT,
		StartResidue INTEGER,
		EndResidue INTEGER,
		MissedCleavages INTEGER,
		PeptideMass DOUBLE,
		MassErrorDa DOUBLE,
		Hypotheses INTEGER,
		IsDecoy BOOL,
		IsContaminant BOOL,
		CumulativeTarget DOUBLE,
		CumulativeDecoy DOUBLE,
		QValue DOUBLE,
		QValueNotch DOUBLE,
		PEP DOUBLE,
		PEPQValue DOUBLE,
		IonAnnotations TEXT,
		blobMass BLOB,
		blobIntensity BLOB,
		blobMassError BLOB
	);

	CREATE TABLE IF NOT EXISTS HypothesisTable (
		PsmId INTEGER REFERENCES PsmTable(PsmId),
		Rank INTEGER,
		Notch INTEGER,
		FullSequence TEXT,
		Accession TEXT,
		StartResidue INTEGER,
		EndResidue INTEGER,
		IsDecoy BOOL,
		MatchedIons INTEGER
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Software TEXT,
		Description TEXT,
		SpectraFile TEXT,
		Database TEXT,
		Parameters TEXT,
		Targets DOUBLE,
		Decoys DOUBLE,
		Provisional BOOL,
		Warnings TEXT
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofPsms INTEGER,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.psmStmt, err = w.tx.Prepare(`
		INSERT INTO PsmTable (
			PsmId, FilePath, ScanNumber, ScanIndex, CoisolationIndex,
			RetentionTime, PrecursorMz, PrecursorCharge, PrecursorMass, Kind,
			Score, DeltaScore, Notch, BaseSequence, FullSequence,
			Accession, StartResidue, EndResidue, MissedCleavages, PeptideMass,
			MassErrorDa, Hypotheses, IsDecoy, IsContaminant, CumulativeTarget,
			CumulativeDecoy, QValue, QValueNotch, PEP, PEPQValue,
			IonAnnotations, blobMass, blobIntensity, blobMassError
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("failed to prepare psm statement: %w", err)
	}

	w.hypothesisStmt, err = w.tx.Prepare(`
		INSERT INTO HypothesisTable (
			PsmId, Rank, Notch, FullSequence, Accession,
			StartResidue, EndResidue, IsDecoy, MatchedIons
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("failed to prepare hypothesis statement: %w", err)
	}

	return nil
}

// SetHeader sets the run description written by Finalize.
func (w *Writer) SetHeader(h Header) {
	w.header = h
}

// WriteMatch writes a single spectral match and its hypotheses to the database
func (w *Writer) WriteMatch(m *psm.SpectralMatch) error {
	best := m.Best()
	fdr := m.Fdr
	if fdr == nil {
		nan := math.NaN()
		fdr = &psm.FdrInfo{QValue: nan, QValueNotch: nan, PEP: nan, PEPQValue: nan}
	}

	// Encode matched ions of the canonical hypothesis as binary blobs
	annotations := make([]string, len(best.Ions))
	for i, ion := range best.Ions {
		annotations[i] = ion.Annotation()
	}
	mzBlob := encodeIons(best.Ions, func(ion psm.MatchedIon) float64 { return ion.ObservedMZ })
	intBlob := encodeIons(best.Ions, func(ion psm.MatchedIon) float64 { return ion.Intensity })
	errBlob := encodeIons(best.Ions, psm.MatchedIon.MassError)

	r := m.Resolved
	_, err := w.psmStmt.Exec(
		w.psmID,                           // PsmId
		m.FilePath,                        // FilePath
		m.ScanNumber,                      // ScanNumber
		m.ScanIndex,                       // ScanIndex
		m.CoisolationIndex,                // CoisolationIndex
		m.RetentionTime,                   // RetentionTime
		m.PrecursorMZ,                     // PrecursorMz
		m.PrecursorCharge,                 // PrecursorCharge
		m.PrecursorMass,                   // PrecursorMass
		m.Kind.String(),                   // Kind
		m.Score,                           // Score
		m.DeltaScore(),                    // DeltaScore
		nullInt(r.Notch),                  // Notch
		nullString(r.BaseSequence),        // BaseSequence
		nullString(r.FullSequence),        // FullSequence
		nullString(r.Accession),           // Accession
		nullInt(r.StartResidue),           // StartResidue
		nullInt(r.EndResidue),             // EndResidue
		nullInt(r.MissedCleavages),        // MissedCleavages
		nullFloat(r.MonoisotopicMass),     // PeptideMass
		nullFloat(m.PrecursorMassError()), // MassErrorDa
		len(m.Hypotheses()),               // Hypotheses
		m.IsDecoy(),                       // IsDecoy
		m.IsContaminant(),                 // IsContaminant
		fdr.CumulativeTarget,              // CumulativeTarget
		fdr.CumulativeDecoy,               // CumulativeDecoy
		nullFloat(fdr.QValue),             // QValue
		nullFloat(fdr.QValueNotch),        // QValueNotch
		nullFloat(fdr.PEP),                // PEP
		nullFloat(fdr.PEPQValue),          // PEPQValue
		strings.Join(annotations, ";"),    // IonAnnotations
		mzBlob,                            // blobMass
		intBlob,                           // blobIntensity
		errBlob,                           // blobMassError
	)
	if err != nil {
		return fmt.Errorf("failed to insert psm: %w", err)
	}

	for rank, h := range m.Hypotheses() {
		if h.Candidate == nil {
			continue
		}
		_, err := w.hypothesisStmt.Exec(
			w.psmID,
			rank,
			h.Notch,
			h.Candidate.FullSequence(),
			h.Candidate.Accession(),
			h.Candidate.OneBasedStartResidue(),
			h.Candidate.OneBasedEndResidue(),
			h.Candidate.IsDecoy(),
			len(h.Ions),
		)
		if err != nil {
			return fmt.Errorf("failed to insert hypothesis: %w", err)
		}
	}

	w.psmID++
	return nil
}

// encodeIons encodes one value per ion as little-endian float64 blob
func encodeIons(ions []psm.MatchedIon, value func(psm.MatchedIon) float64) []byte {
	buf := make([]byte, len(ions)*8)
	for i, ion := range ions {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value(ion)))
	}
	return buf
}

// DecodeBlob decodes a little-endian float64 blob written by WriteMatch.
func DecodeBlob(blob []byte) []float64 {
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values
}

func nullFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullInt(v int) interface{} {
	if v < 0 {
		return nil
	}
	return v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, params[k])
	}
	return b.String()
}

// Finalize writes the header and maintenance tables, commits and closes the database
func (w *Writer) Finalize() error {
	now := time.Now()
	h := w.header

	// Write HeaderTable
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Software, Description, SpectraFile, Database, Parameters, Targets, Decoys, Provisional, Warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, 1, now.Format(headerDateFormat), h.Software, h.Description, h.SpectraFile, h.Database,
		formatParameters(h.Parameters), h.Targets, h.Decoys, h.Provisional, strings.Join(h.Warnings, "\n"))
	if err != nil {
		w.Abort()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Write MaintenanceTable
	_, err = w.tx.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofPsms, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.psmID-1, "")
	if err != nil {
		w.Abort()
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	// Close prepared statements
	w.psmStmt.Close()
	w.hypothesisStmt.Close()

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Abort rolls back everything written and closes the database.
func (w *Writer) Abort() {
	w.psmStmt.Close()
	w.hypothesisStmt.Close()
	w.tx.Rollback()
	w.db.Close()
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
