package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Scan represents a single MS2 scan with all associated metadata.
type Scan struct {
	// Required fields
	ScanNumber      int
	PrecursorMZ     float64 // Monoisotopic precursor m/z
	PrecursorCharge int
	Peaks           []Peak
	Dissociation    DissociationType

	// Precursors lists coisolated precursors when more than one was selected. If empty,
	// PrecursorMZ and PrecursorCharge describe the single precursor.
	Precursors []Precursor

	// Optional metadata
	MsLevel       int
	RetentionTime float64 // minutes
	NativeID      string
	Title         string

	// Internal tracking
	SourceFile   string
	SourceFormat string // mzml, mgf, msp
}

// Precursor is one selected precursor ion of a scan.
type Precursor struct {
	MZ     float64
	Charge int
}

// Mass returns the neutral monoisotopic mass of the precursor.
func (p Precursor) Mass() float64 {
	return MzToMass(p.MZ, p.Charge)
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ        float64
	Intensity float64
	Charge    int // Fragment charge (0 if unknown)
}

// ValidationError represents an error found during scan validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a scan meets all requirements for searching.
func (s *Scan) Validate() error {
	var errs []string

	precursors := s.PrecursorList()
	if len(precursors) == 0 {
		errs = append(errs, "at least one precursor is required")
	}
	for i, p := range precursors {
		if p.Charge == 0 {
			errs = append(errs, fmt.Sprintf("precursor %d charge must be non-zero", i))
		}
		if p.MZ <= 0 || math.IsNaN(p.MZ) || math.IsInf(p.MZ, 0) {
			errs = append(errs, fmt.Sprintf("precursor %d m/z must be positive", i))
		}
	}
	if s.MsLevel > 1 && s.MsLevel != 2 {
		errs = append(errs, fmt.Sprintf("unsupported ms level %d", s.MsLevel))
	}

	// Validate peaks
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	// Check if peaks are sorted
	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Scan %d", s.ScanNumber),
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// PrecursorList returns the coisolated precursors, or the single precursor described by
// PrecursorMZ and PrecursorCharge.
func (s *Scan) PrecursorList() []Precursor {
	if len(s.Precursors) > 0 {
		return s.Precursors
	}
	if s.PrecursorMZ == 0 && s.PrecursorCharge == 0 {
		return nil
	}
	return []Precursor{{MZ: s.PrecursorMZ, Charge: s.PrecursorCharge}}
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Scan) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Scan) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// TotalIonCurrent returns the summed intensity of all peaks.
func (s *Scan) TotalIonCurrent() float64 {
	total := 0.0
	for _, p := range s.Peaks {
		total += p.Intensity
	}
	return total
}

// Name returns the scan name in format "File:ScanNumber"
func (s *Scan) Name() string {
	if s.SourceFile == "" {
		return fmt.Sprintf("scan=%d", s.ScanNumber)
	}
	return fmt.Sprintf("%s:%d", s.SourceFile, s.ScanNumber)
}
