// Package mzml provides a streaming reader for MS2 scans stored in mzML files
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// ErrUnsupportedCompression is returned for binary arrays this reader cannot decode.
var ErrUnsupportedCompression = errors.New("unsupported binary compression")

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type spectrum struct {
	Index              int       `xml:"index,attr"`
	ID                 string    `xml:"id,attr"`
	DefaultArrayLength int       `xml:"defaultArrayLength,attr"`
	CvPar              []cvParam `xml:"cvParam"`
	Scans              []struct {
		CvPar []cvParam `xml:"cvParam"`
	} `xml:"scanList>scan"`
	Precursors []struct {
		SelectedIons []struct {
			CvPar []cvParam `xml:"cvParam"`
		} `xml:"selectedIonList>selectedIon"`
		Activation struct {
			CvPar []cvParam `xml:"cvParam"`
		} `xml:"activation"`
	} `xml:"precursorList>precursor"`
	BinaryDataArrays []binaryDataArray `xml:"binaryDataArrayList>binaryDataArray"`
}

type binaryDataArray struct {
	CvPar  []cvParam `xml:"cvParam"`
	Binary string    `xml:"binary"`
}

// Activation CV terms.
var activations = map[string]core.DissociationType{
	"MS:1000133": core.CID,
	"MS:1000422": core.HCD,
	"MS:1002481": core.HCD,
	"MS:1000598": core.ETD,
	"MS:1000250": core.ECD,
	"MS:1000262": core.IRMPD,
	"MS:1002631": core.EThcD,
}

var scanNumberPattern = regexp.MustCompile(`scan=(\d+)`)

// Reader provides streaming access to the MS2 spectra of an mzML file. Spectra of other
// MS levels are skipped.
type Reader struct {
	decoder     *xml.Decoder
	source      string
	currentScan *core.Scan
	skipped     int
	err         error
}

// NewReader creates a new mzML reader. source is recorded as the scans' SourceFile.
func NewReader(r io.Reader, source string) *Reader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Reader{decoder: d, source: source}
}

// Next advances to the next MS2 scan. Returns false when no more scans or error.
func (r *Reader) Next() bool {
	r.currentScan = nil
	for {
		t, err := r.decoder.Token()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}
		var spec spectrum
		if err := r.decoder.DecodeElement(&spec, &start); err != nil {
			r.err = fmt.Errorf("spectrum: %w", err)
			return false
		}
		scan, err := r.convert(&spec)
		if err != nil {
			r.err = fmt.Errorf("spectrum %q: %w", spec.ID, err)
			return false
		}
		if scan == nil {
			r.skipped++
			continue
		}
		r.currentScan = scan
		return true
	}
}

// Scan returns the current scan
func (r *Reader) Scan() *core.Scan {
	return r.currentScan
}

// Skipped returns the number of spectra skipped because they are not MS2.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) convert(spec *spectrum) (*core.Scan, error) {
	level := 1
	for _, cv := range spec.CvPar {
		if cv.Accession == "MS:1000511" { // ms level
			l, err := strconv.Atoi(cv.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid ms level %q", cv.Value)
			}
			level = l
		}
	}
	if level != 2 {
		return nil, nil
	}

	scan := &core.Scan{
		ScanNumber:   spec.Index + 1,
		MsLevel:      level,
		NativeID:     spec.ID,
		SourceFile:   r.source,
		SourceFormat: "mzml",
	}
	if m := scanNumberPattern.FindStringSubmatch(spec.ID); m != nil {
		scan.ScanNumber, _ = strconv.Atoi(m[1])
	}
	for _, s := range spec.Scans {
		for _, cv := range s.CvPar {
			if cv.Accession != "MS:1000016" { // scan start time
				continue
			}
			rt, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid scan start time %q", cv.Value)
			}
			if cv.UnitAccession == "UO:0000010" { // seconds
				rt /= 60
			}
			scan.RetentionTime = rt
		}
	}

	for _, p := range spec.Precursors {
		for _, ion := range p.SelectedIons {
			var prec core.Precursor
			for _, cv := range ion.CvPar {
				switch cv.Accession {
				case "MS:1000744": // selected ion m/z
					prec.MZ, _ = strconv.ParseFloat(cv.Value, 64)
				case "MS:1000041": // charge state
					prec.Charge, _ = strconv.Atoi(cv.Value)
				}
			}
			scan.Precursors = append(scan.Precursors, prec)
		}
		scan.Dissociation = dissociation(p.Activation.CvPar)
	}
	if len(scan.Precursors) > 0 {
		scan.PrecursorMZ = scan.Precursors[0].MZ
		scan.PrecursorCharge = scan.Precursors[0].Charge
		if len(scan.Precursors) == 1 {
			scan.Precursors = nil
		}
	}

	var mzs, intensities []float64
	for i := range spec.BinaryDataArrays {
		values, kind, err := decodeArray(&spec.BinaryDataArrays[i])
		if err != nil {
			return nil, err
		}
		switch kind {
		case "MS:1000514": // m/z array
			mzs = values
		case "MS:1000515": // intensity array
			intensities = values
		}
	}
	if len(mzs) != len(intensities) {
		return nil, fmt.Errorf("m/z array has %d values and intensity array %d", len(mzs), len(intensities))
	}
	scan.Peaks = make([]core.Peak, len(mzs))
	for i := range mzs {
		scan.Peaks[i] = core.Peak{MZ: mzs[i], Intensity: intensities[i]}
	}
	if !scan.ArePeaksSorted() {
		scan.SortPeaks()
	}
	return scan, nil
}

// dissociation maps activation CV terms to a dissociation type. ETD with supplemental
// beam-type activation is EThcD.
func dissociation(params []cvParam) core.DissociationType {
	d := core.Unknown
	supplemental := false
	for _, cv := range params {
		if t, ok := activations[cv.Accession]; ok {
			if d == core.ETD && t == core.HCD || d == core.HCD && t == core.ETD {
				t = core.EThcD
			}
			d = t
		}
		if cv.Accession == "MS:1002678" { // supplemental beam-type collision-induced dissociation
			supplemental = true
		}
	}
	if d == core.ETD && supplemental {
		d = core.EThcD
	}
	return d
}

// decodeArray decodes a base64 binary array and reports which array it is.
//
// CV terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 no compression
// MS:1002312-MS:1002314, MS:1002746-MS:1002748 MS-Numpress variants
//
// CV terms for binary data type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func decodeArray(b *binaryDataArray) ([]float64, string, error) {
	zlibCompression, bits64 := false, false
	kind := ""
	for _, cv := range b.CvPar {
		switch cv.Accession {
		case "MS:1000574":
			zlibCompression = true
		case "MS:1000523":
			bits64 = true
		case "MS:1000514", "MS:1000515":
			kind = cv.Accession
		case "MS:1002312", "MS:1002313", "MS:1002314", "MS:1002746", "MS:1002747", "MS:1002748":
			return nil, "", fmt.Errorf("%w: CV term %s", ErrUnsupportedCompression, cv.Accession)
		}
	}
	if kind == "" {
		return nil, "", nil
	}
	data, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(b.Binary))))
	if err != nil {
		return nil, "", err
	}
	if zlibCompression && len(data) > 0 {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, "", err
		}
	}

	var values []float64
	if bits64 {
		values = make([]float64, len(data)/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		values = make([]float64, len(data)/4)
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return values, kind, nil
}
