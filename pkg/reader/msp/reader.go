// Package msp provides streaming readers for MSP (NIST/Prosit) spectral libraries, whose
// entries are read as query scans
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	source      string
	lineNum     int
	entries     int
	currentScan *core.Scan
	err         error
}

// NewReader creates a new MSP reader. source is recorded as the scans' SourceFile.
func NewReader(r io.Reader, source string) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
		source:  source,
	}
}

// Next advances to the next scan. Returns false when no more scans or error.
func (r *Reader) Next() bool {
	r.currentScan = nil

	scan, err := r.readScan()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentScan = scan
	return true
}

// Scan returns the current scan
func (r *Reader) Scan() *core.Scan {
	return r.currentScan
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readScan reads a single library entry from the MSP file
func (r *Reader) readScan() (*core.Scan, error) {
	var scan *core.Scan
	numPeaks := -1

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			if scan != nil && numPeaks >= 0 && len(scan.Peaks) >= numPeaks {
				return r.finish(scan), nil
			}
			continue
		}

		if numPeaks < 0 {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: expected 'Key: value', got %q", r.lineNum, line)
			}
			value = strings.TrimSpace(value)
			switch strings.ToLower(key) {
			case "name":
				r.entries++
				scan = &core.Scan{
					ScanNumber:   r.entries,
					MsLevel:      2,
					SourceFile:   r.source,
					SourceFormat: "msp",
				}
				if err := parseName(scan, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "precursormz":
				if scan != nil {
					if mz, err := strconv.ParseFloat(value, 64); err == nil {
						scan.PrecursorMZ = mz
					}
				}
			case "comment":
				if scan != nil {
					parseComment(scan, value)
				}
			case "num peaks", "numpeaks":
				if scan == nil {
					return nil, fmt.Errorf("line %d: peaks before Name", r.lineNum)
				}
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				numPeaks = n
				scan.Peaks = make([]core.Peak, 0, n)
			}
			// MW is skipped, the search uses the precursor m/z
			continue
		}

		// Parse peak line
		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		scan.Peaks = append(scan.Peaks, peak)
		if len(scan.Peaks) >= numPeaks {
			return r.finish(scan), nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read entry, return it
	if scan != nil {
		return r.finish(scan), nil
	}

	return nil, io.EOF
}

func (r *Reader) finish(scan *core.Scan) *core.Scan {
	if !scan.ArePeaksSorted() {
		scan.SortPeaks()
	}
	return scan
}

// parseName extracts the title and charge from the Name field (format: "SEQUENCE/CHARGE")
func parseName(scan *core.Scan, name string) error {
	scan.Title = name
	scan.NativeID = name
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return nil
	}
	charge, err := strconv.Atoi(strings.TrimSpace(name[i+1:]))
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	scan.PrecursorCharge = charge
	return nil
}

// parseComment extracts metadata from Comment field
func parseComment(scan *core.Scan, comment string) {
	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Fragmentation=HCD iRT=61.01
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil && scan.PrecursorMZ == 0 {
				scan.PrecursorMZ = mz
			}

		case "Charge":
			if c, err := strconv.Atoi(value); err == nil && scan.PrecursorCharge == 0 {
				scan.PrecursorCharge = c
			}

		case "RetentionTime", "RT":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				scan.RetentionTime = rt
			}

		case "Scan":
			if n, err := strconv.Atoi(value); err == nil {
				scan.ScanNumber = n
			}

		case "Fragmentation", "Activation":
			if d, err := core.ParseDissociationType(value); err == nil {
				scan.Dissociation = d
			}
		}
	}
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	// Annotations are not carried into scans
	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
