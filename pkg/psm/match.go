// Package psm holds spectral matches: one observed scan associated with one or more
// equally scoring candidate sequences.
package psm

import (
	"fmt"
	"math"
	"sort"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

// ScoreTolerance is the score difference below which two matches are considered tied.
const ScoreTolerance = 1e-9

// Kind tags the type of biopolymer behind a match.
type Kind int

const (
	PeptideMatch Kind = iota
	OligoMatch
	ProteoformMatch
)

func (k Kind) String() string {
	switch k {
	case OligoMatch:
		return "OSM"
	case ProteoformMatch:
		return "PrSM"
	}
	return "PSM"
}

// Candidate is the capability set a match needs from a candidate sequence.
// *digestion.Peptide implements it.
type Candidate interface {
	FullSequence() string
	BaseSequence() string
	MonoisotopicMass() float64
	Accession() string
	HasParent() bool
	OneBasedStartResidue() int
	OneBasedEndResidue() int
	NumMods() int
	MissedCleavages() int
	IsDecoy() bool
	IsContaminant() bool
}

// MatchedIon is a theoretical product paired with the observed peak that explains it.
type MatchedIon struct {
	Product    digestion.Product
	ObservedMZ float64
	Intensity  float64
	Charge     int
}

// ObservedMass returns the neutral mass of the observed peak.
func (m MatchedIon) ObservedMass() float64 {
	return m.ObservedMZ*math.Abs(float64(m.Charge)) - float64(m.Charge)*core.ProtonMass
}

// MassError is observed minus theoretical neutral mass in Daltons.
func (m MatchedIon) MassError() float64 {
	return m.ObservedMass() - m.Product.NeutralMass
}

// Annotation returns e.g. "b3+1".
func (m MatchedIon) Annotation() string {
	return fmt.Sprintf("%s+%d", m.Product.Annotation(), m.Charge)
}

// Hypothesis is one candidate explanation of a scan.
type Hypothesis struct {
	Notch     int
	Candidate Candidate
	Ions      []MatchedIon
}

// ScanInfo identifies the scan and precursor a match was made against.
type ScanInfo struct {
	FilePath         string
	ScanNumber       int
	ScanIndex        int
	CoisolationIndex int
	PrecursorMass    float64
	PrecursorMZ      float64
	PrecursorCharge  int
	RetentionTime    float64
	TotalIonCurrent  float64
}

// FdrInfo carries the statistics attached by FDR analysis.
type FdrInfo struct {
	CumulativeTarget      float64
	CumulativeDecoy       float64
	CumulativeTargetNotch float64
	CumulativeDecoyNotch  float64
	QValue                float64
	QValueNotch           float64
	PEP                   float64
	PEPQValue             float64
}

// Resolved holds the attributes shared by every hypothesis of a match. Fields are left
// empty (zero, "" or NaN, -1 for Notch) where the hypotheses disagree.
type Resolved struct {
	BaseSequence     string
	FullSequence     string
	Accession        string
	Notch            int
	StartResidue     int
	EndResidue       int
	MissedCleavages  int
	MonoisotopicMass float64
}

// SpectralMatch associates a scan with its best scoring hypotheses.
type SpectralMatch struct {
	ScanInfo
	Kind          Kind
	Score         float64
	RunnerUpScore float64
	Resolved      Resolved
	Fdr           *FdrInfo

	hypotheses []Hypothesis
}

// New returns a match holding a single hypothesis.
func New(kind Kind, scan ScanInfo, score float64, h Hypothesis) *SpectralMatch {
	return &SpectralMatch{
		ScanInfo:   scan,
		Kind:       kind,
		Score:      score,
		hypotheses: []Hypothesis{h},
		Resolved:   Resolved{Notch: -1, MonoisotopicMass: math.NaN(), MissedCleavages: -1},
	}
}

// Hypotheses returns the retained hypotheses. The slice must not be modified.
func (m *SpectralMatch) Hypotheses() []Hypothesis { return m.hypotheses }

// AddOrReplace offers a new hypothesis. A strictly better score replaces the current set,
// a tie within ScoreTolerance joins it (or replaces it when it ranks first and
// reportAllAmbiguity is off) and a lower score can only raise the runner-up.
func (m *SpectralMatch) AddOrReplace(h Hypothesis, score float64, reportAllAmbiguity bool) {
	switch {
	case score-m.Score > ScoreTolerance:
		if m.Score-m.RunnerUpScore > ScoreTolerance {
			m.RunnerUpScore = m.Score
		}
		m.Score = score
		m.hypotheses = append(m.hypotheses[:0], h)
	case score-m.Score > -ScoreTolerance:
		for _, old := range m.hypotheses {
			if old.Notch == h.Notch && old.Candidate == h.Candidate {
				return
			}
		}
		if reportAllAmbiguity {
			m.hypotheses = append(m.hypotheses, h)
		} else if CompareHypotheses(h, m.hypotheses[0]) < 0 {
			m.hypotheses[0] = h
		}
	case score-m.RunnerUpScore > ScoreTolerance:
		m.RunnerUpScore = score
	}
}

// DeltaScore is the score margin over the runner-up.
func (m *SpectralMatch) DeltaScore() float64 { return m.Score - m.RunnerUpScore }

// Best returns the canonical hypothesis, the first under CompareHypotheses.
func (m *SpectralMatch) Best() Hypothesis {
	best := m.hypotheses[0]
	for _, h := range m.hypotheses[1:] {
		if CompareHypotheses(h, best) < 0 {
			best = h
		}
	}
	return best
}

// IsAmbiguous reports whether more than one hypothesis is retained.
func (m *SpectralMatch) IsAmbiguous() bool { return len(m.hypotheses) > 1 }

// IsDecoy reports whether any hypothesis comes from a decoy.
func (m *SpectralMatch) IsDecoy() bool {
	for _, h := range m.hypotheses {
		if h.Candidate != nil && h.Candidate.IsDecoy() {
			return true
		}
	}
	return false
}

// IsContaminant reports whether any hypothesis comes from a contaminant.
func (m *SpectralMatch) IsContaminant() bool {
	for _, h := range m.hypotheses {
		if h.Candidate != nil && h.Candidate.IsContaminant() {
			return true
		}
	}
	return false
}

// ContaminantOnly reports whether every hypothesis comes from a contaminant. Decoy
// hypotheses never count as contaminants.
func (m *SpectralMatch) ContaminantOnly() bool {
	for _, h := range m.hypotheses {
		if h.Candidate == nil || !h.Candidate.IsContaminant() || h.Candidate.IsDecoy() {
			return false
		}
	}
	return len(m.hypotheses) > 0
}

// DecoyFraction is the fraction of distinct full sequences that come from decoys.
// A sequence shared between a target and a decoy protein counts as its first hypothesis.
func (m *SpectralMatch) DecoyFraction() float64 {
	seen := make(map[string]bool, len(m.hypotheses))
	var decoys, total float64
	for _, h := range m.hypotheses {
		if h.Candidate == nil {
			continue
		}
		seq := h.Candidate.FullSequence()
		if seen[seq] {
			continue
		}
		seen[seq] = true
		total++
		if h.Candidate.IsDecoy() {
			decoys++
		}
	}
	if total == 0 {
		return 0
	}
	return decoys / total
}

// PrecursorMassError is observed minus theoretical precursor mass of the canonical
// hypothesis, NaN when it has no candidate.
func (m *SpectralMatch) PrecursorMassError() float64 {
	best := m.Best()
	if best.Candidate == nil {
		return math.NaN()
	}
	return m.PrecursorMass - best.Candidate.MonoisotopicMass()
}

// ResolveAllAmbiguities sorts the hypotheses canonically and fills Resolved.
func (m *SpectralMatch) ResolveAllAmbiguities() {
	sort.SliceStable(m.hypotheses, func(i, j int) bool {
		return CompareHypotheses(m.hypotheses[i], m.hypotheses[j]) < 0
	})
	r := Resolved{Notch: -1, MonoisotopicMass: math.NaN(), MissedCleavages: -1}
	if len(m.hypotheses) == 0 || m.hypotheses[0].Candidate == nil {
		m.Resolved = r
		return
	}
	first := m.hypotheses[0]
	c := first.Candidate
	r = Resolved{
		BaseSequence:     c.BaseSequence(),
		FullSequence:     c.FullSequence(),
		Accession:        c.Accession(),
		Notch:            first.Notch,
		StartResidue:     c.OneBasedStartResidue(),
		EndResidue:       c.OneBasedEndResidue(),
		MissedCleavages:  c.MissedCleavages(),
		MonoisotopicMass: c.MonoisotopicMass(),
	}
	for _, h := range m.hypotheses[1:] {
		o := h.Candidate
		if o == nil {
			m.Resolved = Resolved{Notch: -1, MonoisotopicMass: math.NaN(), MissedCleavages: -1}
			return
		}
		if o.BaseSequence() != r.BaseSequence {
			r.BaseSequence = ""
		}
		if o.FullSequence() != r.FullSequence {
			r.FullSequence = ""
		}
		if o.Accession() != r.Accession {
			r.Accession = ""
		}
		if h.Notch != r.Notch {
			r.Notch = -1
		}
		if o.OneBasedStartResidue() != r.StartResidue {
			r.StartResidue = 0
		}
		if o.OneBasedEndResidue() != r.EndResidue {
			r.EndResidue = 0
		}
		if o.MissedCleavages() != r.MissedCleavages {
			r.MissedCleavages = -1
		}
		if o.MonoisotopicMass() != r.MonoisotopicMass {
			r.MonoisotopicMass = math.NaN()
		}
	}
	m.Resolved = r
}

func (m *SpectralMatch) String() string {
	best := m.Best()
	seq := "<none>"
	if best.Candidate != nil {
		seq = best.Candidate.FullSequence()
	}
	return fmt.Sprintf("%s %s:%d/%d %s notch=%d score=%.4f", m.Kind, m.FilePath, m.ScanNumber, m.CoisolationIndex, seq, best.Notch, m.Score)
}
