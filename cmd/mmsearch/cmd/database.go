package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/fasta"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/index"
)

// loadModifications resolves the fixed and variable modification lists against the
// default modification database, extended by the --mods CSV file.
func loadModifications() (fixed, variable []*core.Modification, err error) {
	modDB := core.DefaultModDatabase()
	if modsCSV != "" {
		f, err := os.Open(modsCSV)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open modification file: %w", err)
		}
		err = modDB.LoadFromCSV(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load %s: %w", modsCSV, err)
		}
	}
	if fixed, err = modDB.Lookup(fixedMods); err != nil {
		return nil, nil, fmt.Errorf("fixed modifications: %w", err)
	}
	if variable, err = modDB.Lookup(variableMods); err != nil {
		return nil, nil, fmt.Errorf("variable modifications: %w", err)
	}
	return fixed, variable, nil
}

// loadProteins reads the target and contaminant databases with their decoys.
func loadProteins() ([]*digestion.Protein, error) {
	decoys, err := fasta.ParseDecoyType(decoyType)
	if err != nil {
		return nil, err
	}
	var proteins []*digestion.Protein
	load := func(paths []string, contaminant bool) error {
		for _, path := range paths {
			p, err := fasta.ReadFile(path, fasta.Options{Decoys: decoys, DecoyPrefix: decoyPrefix, Contaminant: contaminant})
			if err != nil {
				return err
			}
			proteins = append(proteins, p...)
		}
		return nil
	}
	if err := load(databaseFiles, false); err != nil {
		return nil, err
	}
	if err := load(contaminantFiles, true); err != nil {
		return nil, err
	}
	if len(proteins) == 0 {
		return nil, fmt.Errorf("no proteins in %s", strings.Join(databaseFiles, ", "))
	}
	return proteins, nil
}

// productTypes parses the --custom-ions list.
func productTypes() ([]digestion.ProductType, error) {
	var types []digestion.ProductType
	for _, s := range strings.Split(customIons, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		t, err := digestion.ParseProductType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// indexParams builds the digestion and index parameters from the flags.
func indexParams() (index.Params, error) {
	params := index.DefaultParams()
	params.Digestion.Protease = protease
	params.Digestion.MaxMissedCleavages = missedCleavages
	params.Digestion.MinPeptideLength = minPeptideLength
	params.Digestion.MaxPeptideLength = maxPeptideLength
	params.Digestion.MaxModsForPeptide = maxModsForPeptide
	params.Digestion.MaxModificationIsoforms = maxModIsoforms
	if semiSpecific {
		params.Digestion.Specificity = digestion.Semi
	}

	var err error
	if params.Digestion.InitiatorMethionine, err = digestion.ParseInitiatorMethionine(initiatorMethionine); err != nil {
		return params, err
	}
	if params.Dissociation, err = core.ParseDissociationType(dissociation); err != nil {
		return params, err
	}
	if params.CustomProductTypes, err = productTypes(); err != nil {
		return params, err
	}
	if params.TCAmbiguity, err = index.ParseTargetContaminantAmbiguity(tcAmbiguity); err != nil {
		return params, err
	}
	if maxFragmentMass <= 0 {
		return params, fmt.Errorf("max fragment mass must be positive, got %g", maxFragmentMass)
	}
	params.MaxFragmentMassBin = index.MaxBinForMass(maxFragmentMass)
	params.GeneratePrecursorIndex = precursorIndex
	params.Deduplicate = deduplicate
	params.Threads = threads
	params.Progress = logProgress
	return params, nil
}

// buildIndex loads the databases and modifications and indexes every peptide.
func buildIndex(cmd *cobra.Command) (*index.Result, []*digestion.Protein, error) {
	params, err := indexParams()
	if err != nil {
		return nil, nil, err
	}
	fixed, variable, err := loadModifications()
	if err != nil {
		return nil, nil, err
	}
	proteins, err := loadProteins()
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.Build(cmd.Context(), proteins, fixed, variable, params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build index: %w", err)
	}
	return idx, proteins, nil
}

func logProgress(stage string, done, total int) {
	log.Debug.Printf("%s: %d/%d", stage, done, total)
}
