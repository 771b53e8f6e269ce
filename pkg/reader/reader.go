// Package reader opens spectra files by format and streams their MS2 scans
package reader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/log"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/reader/mgf"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/reader/msp"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/reader/mzml"
)

// ScanReader is implemented by the format readers.
type ScanReader interface {
	Next() bool
	Scan() *core.Scan
	Err() error
}

// Format identifies a spectra file format.
type Format string

const (
	MzML Format = "mzml"
	MGF  Format = "mgf"
	MSP  Format = "msp"
)

// DetectFormat returns the format implied by a file name.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzml":
		return MzML, nil
	case ".mgf":
		return MGF, nil
	case ".msp":
		return MSP, nil
	}
	return "", fmt.Errorf("unsupported spectra file %s (expected .mzML, .mgf or .msp)", path)
}

// New returns a reader for r in the given format. source names the scans' SourceFile.
func New(r io.Reader, format Format, source string) (ScanReader, error) {
	switch format {
	case MzML:
		return mzml.NewReader(r, source), nil
	case MGF:
		return mgf.NewReader(r, source), nil
	case MSP:
		return msp.NewReader(r, source), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// ReadFile reads every MS2 scan of a spectra file. Scans without a dissociation type get
// the fallback.
func ReadFile(path string, fallback core.DissociationType) ([]*core.Scan, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectra file: %w", err)
	}
	defer f.Close()

	r, err := New(f, format, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	var scans []*core.Scan
	for r.Next() {
		scan := r.Scan()
		if scan.Dissociation == core.Unknown {
			scan.Dissociation = fallback
		}
		scans = append(scans, scan)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug.Printf("read %d scans from %s", len(scans), path)
	return scans, nil
}
