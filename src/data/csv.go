package data

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// LoadSnapshotCSV reads an option-chain capture from a CSV fixture for
// offline replay. Malformed rows are skipped and counted, not fatal.
func LoadSnapshotCSV(inDir string) ([]eventmodels.OptionContractSnapshot, error) {
	file, err := os.Open(inDir)
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshotCSV: failed to open %s: %w", inDir, err)
	}

	defer file.Close()

	var dtos []*eventmodels.OptionContractSnapshotDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("LoadSnapshotCSV: failed to unmarshal %s: %w", inDir, err)
	}

	var contracts []eventmodels.OptionContractSnapshot
	skipped := 0

	for _, dto := range dtos {
		contract, err := dto.ToModel()
		if err != nil {
			skipped++
			continue
		}

		contracts = append(contracts, contract)
	}

	log.Infof("loaded %d contracts from %s (%d skipped)", len(contracts), inDir, skipped)

	return contracts, nil
}

// ExportSnapshotCSV writes an option-chain capture back out, so live pulls
// can be replayed later.
func ExportSnapshotCSV(outDir string, contracts []eventmodels.OptionContractSnapshot) error {
	file, err := os.Create(outDir)
	if err != nil {
		return fmt.Errorf("ExportSnapshotCSV: failed to create %s: %w", outDir, err)
	}

	defer file.Close()

	dtos := make([]*eventmodels.OptionContractSnapshotDTO, 0, len(contracts))
	for _, contract := range contracts {
		dtos = append(dtos, contract.ToDTO())
	}

	if err := gocsv.MarshalFile(&dtos, file); err != nil {
		return fmt.Errorf("ExportSnapshotCSV: error marshalling file: %v", err)
	}

	log.Infof("Exported %d contracts to %s", len(contracts), outDir)

	return nil
}
