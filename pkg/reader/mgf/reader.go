// Package mgf provides streaming readers for Mascot Generic Format peak lists
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

var titleScanPattern = regexp.MustCompile(`(?i)scan[=:\s]*(\d+)`)

// Reader provides streaming access to MGF files
type Reader struct {
	scanner     *bufio.Scanner
	source      string
	lineNum     int
	entries     int
	currentScan *core.Scan
	err         error
}

// NewReader creates a new MGF reader. source is recorded as the scans' SourceFile.
func NewReader(r io.Reader, source string) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{
		scanner: scanner,
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

// readScan reads the next BEGIN IONS ... END IONS block
func (r *Reader) readScan() (*core.Scan, error) {
	var scan *core.Scan
	var charges []int

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || line[0] == '#' || line[0] == ';' || line[0] == '!' || line[0] == '/' {
			continue
		}

		if scan == nil {
			if strings.EqualFold(line, "BEGIN IONS") {
				r.entries++
				scan = &core.Scan{
					ScanNumber:   r.entries,
					MsLevel:      2,
					SourceFile:   r.source,
					SourceFormat: "mgf",
				}
			}
			// global parameters before the first entry are ignored
			continue
		}

		if strings.EqualFold(line, "END IONS") {
			finishPrecursors(scan, charges)
			if !scan.ArePeaksSorted() {
				scan.SortPeaks()
			}
			return scan, nil
		}

		if key, value, ok := strings.Cut(line, "="); ok && !isNumberStart(line[0]) {
			var err error
			charges, err = r.parseHeader(scan, strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value), charges)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			continue
		}

		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		scan.Peaks = append(scan.Peaks, peak)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if scan != nil {
		return nil, fmt.Errorf("line %d: missing END IONS for entry %d", r.lineNum, r.entries)
	}
	return nil, io.EOF
}

func isNumberStart(c byte) bool {
	return c >= '0' && c <= '9' || c == '-' || c == '+' || c == '.'
}

// parseHeader applies one KEY=value line of an entry
func (r *Reader) parseHeader(scan *core.Scan, key, value string, charges []int) ([]int, error) {
	switch key {
	case "TITLE":
		scan.Title = value
		scan.NativeID = value
		if m := titleScanPattern.FindStringSubmatch(value); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				scan.ScanNumber = n
			}
		}

	case "PEPMASS":
		// Format: mz [intensity]
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return charges, fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return charges, fmt.Errorf("invalid PEPMASS %q: %w", value, err)
		}
		scan.PrecursorMZ = mz

	case "CHARGE":
		// Format: 2+, 3-, "2+ and 3+" or "2+,3+"
		charges = charges[:0]
		for _, f := range strings.FieldsFunc(value, func(c rune) bool { return c == ',' || c == ' ' }) {
			if strings.EqualFold(f, "and") {
				continue
			}
			c, err := parseCharge(f)
			if err != nil {
				return charges, err
			}
			charges = append(charges, c)
		}

	case "SCANS":
		// May be a range, take the first scan
		first, _, _ := strings.Cut(value, "-")
		n, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil {
			return charges, fmt.Errorf("invalid SCANS %q: %w", value, err)
		}
		scan.ScanNumber = n

	case "RTINSECONDS":
		first, _, _ := strings.Cut(value, "-")
		rt, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
		if err != nil {
			return charges, fmt.Errorf("invalid RTINSECONDS %q: %w", value, err)
		}
		scan.RetentionTime = rt / 60

	case "ACTIVATION", "FRAGMENTATION":
		if d, err := core.ParseDissociationType(value); err == nil {
			scan.Dissociation = d
		}
	}
	return charges, nil
}

// finishPrecursors fills the precursor charge. Several CHARGE values make one precursor per charge.
func finishPrecursors(scan *core.Scan, charges []int) {
	switch len(charges) {
	case 0:
	case 1:
		scan.PrecursorCharge = charges[0]
	default:
		scan.PrecursorCharge = charges[0]
		for _, c := range charges {
			scan.Precursors = append(scan.Precursors, core.Precursor{MZ: scan.PrecursorMZ, Charge: c})
		}
	}
}

func parseCharge(s string) (int, error) {
	sign := 1
	switch {
	case strings.HasSuffix(s, "+"):
		s = strings.TrimSuffix(s, "+")
	case strings.HasSuffix(s, "-"):
		s = strings.TrimSuffix(s, "-")
		sign = -1
	}
	c, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid charge %q: %w", s, err)
	}
	return sign * c, nil
}

// parsePeak parses a single peak line
// Format: "mz intensity [charge]"
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return core.Peak{}, fmt.Errorf("invalid peak format")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	peak := core.Peak{MZ: mz, Intensity: 1}
	if len(fields) >= 2 {
		peak.Intensity, err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
		}
	}
	if len(fields) >= 3 {
		peak.Charge, err = parseCharge(fields[2])
		if err != nil {
			return core.Peak{}, err
		}
	}
	return peak, nil
}
