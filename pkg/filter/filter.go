// Package filter provides peak trimming applied to scans before searching
package filter

import (
	"fmt"
	"math"
	"sort"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

const (
	DefaultPeaksPerWindow    = 200
	DefaultMinIntensityRatio = 0.01
)

// Config holds filtering configuration
type Config struct {
	PeaksPerWindow    int     // Keep only the N most intense peaks of each window (0 = no limit)
	MinIntensityRatio float64 // Keep only peaks at or above this fraction of the window's base peak (0 = no cutoff)

	// Windows split the m/z range. A positive WindowWidth gives windows of that many
	// Thomsons starting at the lowest peak; otherwise NumWindows equal windows span the
	// peaks (0 or 1 = the whole scan is one window).
	WindowWidth float64
	NumWindows  int

	// NormalizeAcrossWindows rescales each window so its base peak equals the scan's.
	NormalizeAcrossWindows bool
}

// DefaultConfig returns the trimming applied to MS2 scans unless configured otherwise.
func DefaultConfig() Config {
	return Config{PeaksPerWindow: DefaultPeaksPerWindow, MinIntensityRatio: DefaultMinIntensityRatio}
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	if c.PeaksPerWindow < 0 {
		return fmt.Errorf("peaks per window must be non-negative, got %d", c.PeaksPerWindow)
	}
	if c.MinIntensityRatio < 0 || c.MinIntensityRatio > 1 {
		return fmt.Errorf("minimum intensity ratio must be in [0, 1], got %g", c.MinIntensityRatio)
	}
	if c.WindowWidth < 0 || c.NumWindows < 0 {
		return fmt.Errorf("window width and count must be non-negative")
	}
	return nil
}

// Apply applies all configured filters to a scan
func (c *Config) Apply(scan *core.Scan) error {
	if err := c.Validate(); err != nil {
		return err
	}
	RemoveZeroIntensityPeaks(scan)
	if len(scan.Peaks) == 0 {
		return nil
	}
	if !scan.ArePeaksSorted() {
		scan.SortPeaks()
	}

	windows := c.windows(scan.Peaks)
	baseAll := 0.0
	for _, w := range windows {
		baseAll = math.Max(baseAll, basePeak(w))
	}

	var kept []core.Peak
	for _, w := range windows {
		w = c.filterByIntensity(w)
		w = c.filterTopN(w)
		if c.NormalizeAcrossWindows {
			if base := basePeak(w); base > 0 {
				for i := range w {
					w[i].Intensity *= baseAll / base
				}
			}
		}
		kept = append(kept, w...)
	}
	scan.Peaks = kept

	// Ensure peaks are sorted after all filtering
	scan.SortPeaks()
	return nil
}

// windows returns copies of the peak runs falling in each m/z window.
func (c *Config) windows(peaks []core.Peak) [][]core.Peak {
	lo, hi := peaks[0].MZ, peaks[len(peaks)-1].MZ
	width, lastWindow := c.WindowWidth, math.Inf(1)
	if width <= 0 {
		n := c.NumWindows
		if n <= 1 || hi == lo {
			return [][]core.Peak{append([]core.Peak(nil), peaks...)}
		}
		width, lastWindow = (hi-lo)/float64(n), float64(n-1)
	}

	var out [][]core.Peak
	start := 0
	for start < len(peaks) {
		k := math.Min(math.Floor((peaks[start].MZ-lo)/width), lastWindow)
		end := lo + (k+1)*width
		if k == lastWindow {
			end = math.Inf(1)
		}
		stop := start
		for stop < len(peaks) && peaks[stop].MZ < end {
			stop++
		}
		if stop == start {
			// rounding put the peak on its window's upper bound
			stop++
		}
		out = append(out, append([]core.Peak(nil), peaks[start:stop]...))
		start = stop
	}
	return out
}

func basePeak(peaks []core.Peak) float64 {
	base := 0.0
	for _, p := range peaks {
		base = math.Max(base, p.Intensity)
	}
	return base
}

// filterByIntensity removes peaks below the intensity ratio of the base peak
func (c *Config) filterByIntensity(peaks []core.Peak) []core.Peak {
	if c.MinIntensityRatio <= 0 || len(peaks) == 0 {
		return peaks
	}
	threshold := c.MinIntensityRatio * basePeak(peaks)
	filtered := peaks[:0]
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks. Equal intensities keep the lower m/z.
func (c *Config) filterTopN(peaks []core.Peak) []core.Peak {
	if c.PeaksPerWindow <= 0 || len(peaks) <= c.PeaksPerWindow {
		return peaks
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})
	return peaks[:c.PeaksPerWindow]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(scan *core.Scan) {
	var filtered []core.Peak
	for _, peak := range scan.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	scan.Peaks = filtered
}
