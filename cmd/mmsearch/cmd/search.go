package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/acceptor"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/fdr"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/filter"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/index"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/reader"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/search"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/writer/sqlite"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search MS2 scans against protein databases",
	Long: `Digest the protein databases, match every MS2 scan against the resulting peptides
and estimate false discovery rates from reversed decoys.

Examples:
  # Indexed search with default tryptic HCD settings
  mmsearch search --spectra run.mzML --db human.fasta --out run.psmdb

  # Exhaustive search with isotope notches and a contaminant database
  mmsearch search -s run.mgf -d human.fasta --contaminants crap.fasta --engine classic --acceptor TwoMM

  # Open search through the precursor index
  mmsearch search -s run.mzML -d yeast.fasta --acceptor Open --precursor-index`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	idxParams, err := indexParams()
	if err != nil {
		return err
	}
	params, err := searchParams(idxParams)
	if err != nil {
		return err
	}
	acc, err := massDiffAcceptor()
	if err != nil {
		return err
	}
	engine = strings.ToLower(engine)
	if engine != "modern" && engine != "classic" {
		return fmt.Errorf("invalid engine '%s', must be modern or classic", engine)
	}
	filterConfig := filter.Config{
		PeaksPerWindow:         peaksPerWindow,
		MinIntensityRatio:      minIntensityRatio,
		WindowWidth:            windowWidth,
		NumWindows:             numWindows,
		NormalizeAcrossWindows: normalizeWindows,
	}
	if err := filterConfig.Validate(); err != nil {
		return err
	}

	fmt.Printf("Searching %s against %s...\n", strings.Join(spectraFiles, ", "), strings.Join(databaseFiles, ", "))
	fmt.Printf("Engine: %s\n", engine)
	fmt.Printf("Dissociation: %s\n", params.Dissociation)
	fmt.Printf("Acceptor: %s\n", acc)

	scans, invalid, err := readScans(params.Dissociation, &filterConfig)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		return fmt.Errorf("no searchable scans in %s", strings.Join(spectraFiles, ", "))
	}

	idx, proteins, err := buildIndex(cmd)
	if err != nil {
		return err
	}

	ms2 := search.NewMs2Scans(scans)
	var res *search.Result
	if engine == "classic" {
		res, err = search.Classic(cmd.Context(), ms2, idx.Peptides, acc, params)
	} else {
		res, err = search.Modern(cmd.Context(), ms2, idx, acc, params)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fdrEngine := &fdr.Engine{
		NumNotches:             acc.NumNotches(),
		DoPEP:                  doPEP,
		Strict:                 strictFDR,
		OverrideMinCount:       overrideMinCount,
		ExcludeContaminantOnly: excludeContaminants,
	}
	fdrRes, err := fdrEngine.Run(res.Matches)
	if err != nil {
		return err
	}
	for _, w := range fdrRes.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	if outputFile != "" {
		header := sqlite.Header{
			Software:    "mmsearch " + rootCmd.Version,
			Description: fmt.Sprintf("%s search, %s", engine, acc),
			SpectraFile: strings.Join(spectraFiles, ";"),
			Database:    strings.Join(append(append([]string{}, databaseFiles...), contaminantFiles...), ";"),
			Parameters:  runParameters(idxParams, params, acc),
			Targets:     fdrRes.Targets,
			Decoys:      fdrRes.Decoys,
			Provisional: fdrRes.Provisional,
			Warnings:    fdrRes.Warnings,
		}
		if err := writeMatches(outputFile, header, fdrRes.Matches); err != nil {
			return err
		}
	}

	confident := fdr.Filter(fdrRes.Matches, fdr.Cutoff{QValue: qValueCutoff, PEPQValue: pepQValueCutoff})
	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("Proteins: %d (including decoys)\n", len(proteins))
	fmt.Printf("Peptides indexed: %d\n", len(idx.Peptides))
	fmt.Printf("Scans searched: %d (%d invalid scans skipped)\n", res.ScansSearched, invalid)
	fmt.Printf("Matches: %d (%.1f targets, %.1f decoys)\n", len(fdrRes.Matches), fdrRes.Targets, fdrRes.Decoys)
	fmt.Printf("Target matches at q <= %g: %d (%d unique sequences)\n", qValueCutoff, len(confident), len(fdr.CountByFullSequence(confident)))
	if fdrRes.PEPComputed {
		fmt.Printf("PEP: computed\n")
	}
	fmt.Printf("Search time: %v\n", res.Elapsed)
	if outputFile != "" {
		fmt.Printf("Output: %s\n", outputFile)
	}
	return nil
}

// searchParams derives the search parameters from the flags and the index parameters, so
// both fragment the same way.
func searchParams(idxParams index.Params) (search.Params, error) {
	params := search.DefaultParams()
	params.Dissociation = idxParams.Dissociation
	params.CustomProductTypes = idxParams.CustomProductTypes
	params.FragmentationTerminus = idxParams.FragmentationTerminus
	params.ScoreCutoff = scoreCutoff
	params.AddCompIons = addCompIons
	params.TopN = topN
	params.BestPerNotch = bestPerNotch
	params.ReportAllAmbiguity = reportAllAmbiguity
	params.MaxMassThatFragmentIonScoreIsDoubled = maxDoubledMass
	params.Threads = threads
	params.Progress = logProgress

	var err error
	if params.ProductTolerance, err = core.ParseTolerance(productTolerance); err != nil {
		return params, fmt.Errorf("product tolerance: %w", err)
	}
	if params.Scoring, err = search.ParseScoringFunction(scoring); err != nil {
		return params, err
	}
	return params, params.Validate()
}

func massDiffAcceptor() (acceptor.MassDiffAcceptor, error) {
	kind, err := acceptor.ParseKind(acceptorKind)
	if err != nil {
		return nil, err
	}
	tol, err := core.ParseTolerance(precursorTolerance)
	if err != nil {
		return nil, fmt.Errorf("precursor tolerance: %w", err)
	}
	return acceptor.New(kind, tol, customAcceptor)
}

// readScans reads and filters every spectra file. Scans failing validation after
// filtering are skipped and counted.
func readScans(d core.DissociationType, filterConfig *filter.Config) ([]*core.Scan, int, error) {
	fallback := d
	if fallbackDissociation != "" {
		var err error
		if fallback, err = core.ParseDissociationType(fallbackDissociation); err != nil {
			return nil, 0, err
		}
	}
	var scans []*core.Scan
	invalid := 0
	for _, path := range spectraFiles {
		fileScans, err := reader.ReadFile(path, fallback)
		if err != nil {
			return nil, 0, err
		}
		for _, scan := range fileScans {
			if err := filterConfig.Apply(scan); err != nil {
				return nil, 0, err
			}
			if err := scan.Validate(); err != nil {
				log.Error.Printf("%s: %v", filepath.Base(path), err)
				invalid++
				continue
			}
			scans = append(scans, scan)
		}
	}
	return scans, invalid, nil
}

// writeMatches stores the matches in a new database at path, replacing any earlier file.
func writeMatches(path string, header sqlite.Header, matches []*psm.SpectralMatch) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	writer, err := sqlite.NewWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	for _, m := range matches {
		if err := writer.WriteMatch(m); err != nil {
			writer.Abort()
			return err
		}
	}
	writer.SetHeader(header)
	return writer.Finalize()
}

// runParameters records the settings of a run in the output header.
func runParameters(idxParams index.Params, params search.Params, acc acceptor.MassDiffAcceptor) map[string]string {
	dp := idxParams.Digestion
	return map[string]string{
		"protease":            dp.Protease,
		"missedCleavages":     strconv.Itoa(dp.MaxMissedCleavages),
		"minPeptideLength":    strconv.Itoa(dp.MinPeptideLength),
		"maxPeptideLength":    strconv.Itoa(dp.MaxPeptideLength),
		"initiatorMethionine": dp.InitiatorMethionine.String(),
		"specificity":         dp.Specificity.String(),
		"maxModsForPeptide":   strconv.Itoa(dp.MaxModsForPeptide),
		"fixedMods":           fixedMods,
		"variableMods":        variableMods,
		"decoys":              decoyType,
		"dissociation":        params.Dissociation.String(),
		"productTolerance":    params.ProductTolerance.String(),
		"precursorTolerance":  precursorTolerance,
		"acceptor":            acc.String(),
		"scoring":             params.Scoring.String(),
		"scoreCutoff":         strconv.FormatFloat(params.ScoreCutoff, 'g', -1, 64),
		"topN":                strconv.Itoa(params.TopN),
		"bestPerNotch":        strconv.FormatBool(params.BestPerNotch),
		"reportAllAmbiguity":  strconv.FormatBool(params.ReportAllAmbiguity),
		"compIons":            strconv.FormatBool(params.AddCompIons),
		"engine":              engine,
		"peaksPerWindow":      strconv.Itoa(peaksPerWindow),
		"minIntensityRatio":   strconv.FormatFloat(minIntensityRatio, 'g', -1, 64),
		"targetContaminant":   tcAmbiguity,
		"pep":                 strconv.FormatBool(doPEP),
	}
}
