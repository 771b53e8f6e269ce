// Package search matches MS2 scans against indexed peptide candidates.
package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

var (
	// ErrUnknownDissociation is returned when the dissociation type has no ion series.
	ErrUnknownDissociation = errors.New("unknown dissociation type")
	// ErrNotImplemented is returned for unsupported parameter combinations.
	ErrNotImplemented = errors.New("not implemented")
)

// ScoringFunction selects how matched ions are turned into a score.
type ScoringFunction int

const (
	// MorpheusScore adds one plus the ion's share of the total ion current per matched ion.
	MorpheusScore ScoringFunction = iota
	// CountScore adds one per matched ion.
	CountScore
)

func (s ScoringFunction) String() string {
	if s == CountScore {
		return "Count"
	}
	return "Morpheus"
}

// ParseScoringFunction parses "Morpheus" or "Count".
func ParseScoringFunction(s string) (ScoringFunction, error) {
	switch strings.ToLower(s) {
	case "morpheus", "":
		return MorpheusScore, nil
	case "count":
		return CountScore, nil
	}
	return MorpheusScore, fmt.Errorf("unknown scoring function %q", s)
}

// Params configures a search.
type Params struct {
	ProductTolerance      core.Tolerance
	Dissociation          core.DissociationType
	CustomProductTypes    []digestion.ProductType
	FragmentationTerminus digestion.FragmentationTerminus
	ScoreCutoff           float64
	AddCompIons           bool
	Scoring               ScoringFunction

	// Ions whose theoretical mass is at most this value score twice. Zero disables it.
	MaxMassThatFragmentIonScoreIsDoubled float64

	// ReportAllAmbiguity keeps every tied candidate instead of the canonical one.
	ReportAllAmbiguity bool
	// TopN is the number of score tiers kept per scan and precursor. Candidates tied
	// within psm.ScoreTolerance share a tier. Values below 1 mean 1.
	TopN int
	// BestPerNotch keeps TopN tiers for every notch instead of across notches.
	BestPerNotch bool

	Threads  int // <= 0: runtime.NumCPU()
	Progress core.ProgressFunc
}

// DefaultParams returns HCD search parameters with a 20 ppm product tolerance.
func DefaultParams() Params {
	return Params{
		ProductTolerance:   core.PpmTolerance(20),
		Dissociation:       core.HCD,
		ScoreCutoff:        5,
		ReportAllAmbiguity: true,
		TopN:               1,
	}
}

// Validate checks the parameters before any scan is searched.
func (p Params) Validate() error {
	switch p.Dissociation {
	case core.HCD, core.CID, core.ECD, core.ETD, core.EThcD, core.IRMPD, core.LowCID:
	case core.Custom:
		if len(p.CustomProductTypes) == 0 {
			return fmt.Errorf("%w: custom dissociation without product types", ErrUnknownDissociation)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownDissociation, p.Dissociation)
	}
	if p.AddCompIons {
		if _, err := complementaryShifts(p.Dissociation); err != nil {
			return err
		}
	}
	if p.ProductTolerance == nil {
		return errors.New("product mass tolerance is required")
	}
	if p.ProductTolerance.Value() < 0 {
		return fmt.Errorf("product mass tolerance must be non-negative, got %s", p.ProductTolerance)
	}
	if p.ScoreCutoff < 0 {
		return fmt.Errorf("score cutoff must be non-negative, got %g", p.ScoreCutoff)
	}
	return nil
}

func (p Params) topN() int {
	if p.TopN < 1 {
		return 1
	}
	return p.TopN
}

func (p Params) fragmentOptions() digestion.FragmentOptions {
	return digestion.NewFragmentOptions(p.Dissociation, p.FragmentationTerminus, p.CustomProductTypes)
}

// complementaryShifts returns the neutral masses added to the precursor mass when a
// fragment is converted into its complement. b/y pairs sum to the precursor mass; c/z•
// pairs carry one extra hydrogen.
func complementaryShifts(d core.DissociationType) ([]float64, error) {
	collisional := core.MzToMass(core.ProtonMass, 1)
	electron := core.MzToMass(2*core.ProtonMass, 1)
	switch d {
	case core.HCD, core.CID, core.LowCID:
		return []float64{collisional}, nil
	case core.ECD, core.ETD:
		return []float64{electron}, nil
	case core.EThcD:
		return []float64{collisional, electron}, nil
	}
	return nil, fmt.Errorf("%w: complementary ions for %v dissociation", ErrNotImplemented, d)
}
