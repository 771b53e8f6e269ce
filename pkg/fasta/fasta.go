// Package fasta loads protein databases and generates decoy proteins.
package fasta

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

// DefaultDecoyPrefix is prepended to the accession of generated decoys.
const DefaultDecoyPrefix = "DECOY_"

// DecoyType selects how decoy proteins are generated.
type DecoyType int

const (
	NoDecoys DecoyType = iota
	ReverseDecoys
)

// ParseDecoyType parses "none" or "reverse".
func ParseDecoyType(s string) (DecoyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return NoDecoys, nil
	case "reverse":
		return ReverseDecoys, nil
	}
	return NoDecoys, fmt.Errorf("unknown decoy type %q (want none or reverse)", s)
}

// Options control how a database file is loaded.
type Options struct {
	Decoys      DecoyType
	DecoyPrefix string // "": DefaultDecoyPrefix
	Contaminant bool   // every target of the file is a contaminant
}

var (
	uniprotHeader = regexp.MustCompile(`^(?:sp|tr)\|([^|]+)\|(\S+)`)
	organismField = regexp.MustCompile(`\sOS=(.+?)(?:\s+[A-Z]{2}=|$)`)
)

// ReadFile loads the proteins of a FASTA file, followed by their decoys when requested.
// Gzipped files are read transparently.
func ReadFile(path string, opts Options) ([]*digestion.Protein, error) {
	r, err := fastx.NewReader(seq.Unlimit, path, "")
	if err != nil {
		return nil, fmt.Errorf("failed to open protein database: %w", err)
	}
	defer r.Close()

	var targets []*digestion.Protein
	seen := make(map[string]bool)
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p := parseRecord(string(record.Name), string(record.Seq.Seq))
		if p.Sequence == "" {
			log.Error.Printf("skipping protein %s with empty sequence", p.Accession)
			continue
		}
		if seen[p.Accession] {
			log.Error.Printf("duplicate accession %s in %s", p.Accession, path)
		}
		seen[p.Accession] = true
		p.IsContaminant = opts.Contaminant
		targets = append(targets, p)
	}
	log.Debug.Printf("read %d proteins from %s", len(targets), path)

	if opts.Decoys == NoDecoys {
		return targets, nil
	}
	return append(targets, Decoys(targets, opts.DecoyPrefix)...), nil
}

// parseRecord builds a protein from a FASTA header and sequence. UniProt headers give the
// accession, entry name and organism; other headers use the first word as accession.
func parseRecord(header, sequence string) *digestion.Protein {
	header = strings.TrimSpace(header)
	p := &digestion.Protein{Sequence: strings.ToUpper(strings.TrimRight(sequence, "*"))}

	id, desc, _ := strings.Cut(header, " ")
	p.Accession = id
	if m := uniprotHeader.FindStringSubmatch(id); m != nil {
		p.Accession = m[1]
	}
	desc = strings.TrimSpace(desc)
	if m := organismField.FindStringSubmatch(" " + desc); m != nil {
		p.Organism = strings.TrimSpace(m[1])
	}
	if i := strings.Index(desc, " OS="); i >= 0 {
		desc = desc[:i]
	} else if strings.HasPrefix(desc, "OS=") {
		desc = ""
	}
	p.Name = desc
	return p
}

// Decoys returns a reversed decoy for every target. A leading methionine stays in place so
// decoys keep the initiator methionine behaviour of their targets. Decoys of contaminants
// are plain decoys.
func Decoys(targets []*digestion.Protein, prefix string) []*digestion.Protein {
	if prefix == "" {
		prefix = DefaultDecoyPrefix
	}
	decoys := make([]*digestion.Protein, 0, len(targets))
	for _, t := range targets {
		decoys = append(decoys, &digestion.Protein{
			Accession: prefix + t.Accession,
			Name:      t.Name,
			Organism:  t.Organism,
			Sequence:  Reverse(t.Sequence),
			IsDecoy:   true,
		})
	}
	return decoys
}

// Reverse reverses a protein sequence, keeping a leading M first.
func Reverse(sequence string) string {
	b := []byte(sequence)
	start := 0
	if len(b) > 0 && b[0] == 'M' {
		start = 1
	}
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
