package msp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

const sample = `Name: PEPTIDEK/2
MW: 927.45
Comment: Parent=464.7328 Collision_energy=30 Fragmentation=HCD iRT=12.5 RT=30.25
Num peaks: 3
147.1128	1000	"y1/0.1ppm"
244.1656	500	"y2/0.3ppm"
98.0600	20	"b1"

Name: ELVISLIVESK/3
PrecursorMZ: 424.5870
Comment: Scan=42
Num peaks: 0

Name: AAAK
Comment: Parent=188.1 Charge=1
Num peaks: 1
90.05	10
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(sample), "lib.msp")
	var scans []*core.Scan
	for r.Next() {
		scans = append(scans, r.Scan())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []*core.Scan{
		{
			ScanNumber:      1,
			PrecursorMZ:     464.7328,
			PrecursorCharge: 2,
			Dissociation:    core.HCD,
			Peaks: []core.Peak{
				{MZ: 98.06, Intensity: 20},
				{MZ: 147.1128, Intensity: 1000},
				{MZ: 244.1656, Intensity: 500},
			},
			MsLevel:       2,
			RetentionTime: 30.25,
			NativeID:      "PEPTIDEK/2",
			Title:         "PEPTIDEK/2",
			SourceFile:    "lib.msp",
			SourceFormat:  "msp",
		},
		{
			ScanNumber:      42,
			PrecursorMZ:     424.587,
			PrecursorCharge: 3,
			Peaks:           []core.Peak{},
			MsLevel:         2,
			NativeID:        "ELVISLIVESK/3",
			Title:           "ELVISLIVESK/3",
			SourceFile:      "lib.msp",
			SourceFormat:    "msp",
		},
		{
			ScanNumber:      3,
			PrecursorMZ:     188.1,
			PrecursorCharge: 1,
			Peaks:           []core.Peak{{MZ: 90.05, Intensity: 10}},
			MsLevel:         2,
			NativeID:        "AAAK",
			Title:           "AAAK",
			SourceFile:      "lib.msp",
			SourceFormat:    "msp",
		},
	}
	if diff := cmp.Diff(want, scans); diff != "" {
		t.Errorf("scans mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bad charge", "Name: PEPTIDEK/x\nNum peaks: 0\n"},
		{"bad count", "Name: PEPTIDEK/2\nNum peaks: many\n"},
		{"bad peak", "Name: PEPTIDEK/2\nNum peaks: 1\n147.1 abc\n"},
		{"peaks before name", "Num peaks: 1\n147.1 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.text), "")
			for r.Next() {
			}
			if r.Err() == nil {
				t.Error("Err() = nil, want error")
			}
		})
	}
}
