package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optionsflow/optionsflow/src/cmd/scanner/run"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/scanner/main.go --config config/scanner.yaml --csv chain.csv --price 21054.50",
	Short: "Run the institutional flow scanner once against a live or replayed option chain",
	Run: func(cmd *cobra.Command, args []string) {
		goEnv, err := cmd.Flags().GetString("go-env")
		if err != nil {
			log.Fatalf("error getting go-env: %v", err)
		}

		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		symbol, err := cmd.Flags().GetString("symbol")
		if err != nil {
			log.Fatalf("error getting symbol: %v", err)
		}

		snapshotCSV, err := cmd.Flags().GetString("csv")
		if err != nil {
			log.Fatalf("error getting csv: %v", err)
		}

		currentPrice, err := cmd.Flags().GetFloat64("price")
		if err != nil {
			log.Fatalf("error getting price: %v", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		if snapshotCSV != "" && currentPrice <= 0 {
			log.Fatalf("--price is required when replaying from --csv")
		}

		result, err := run.Run(run.RunArgs{
			GoEnv:        goEnv,
			ConfigPath:   configPath,
			Symbol:       symbol,
			SnapshotCSV:  snapshotCSV,
			CurrentPrice: currentPrice,
			OutDir:       outDir,
		})

		if err != nil {
			log.Errorf("Error: %v", err)
			os.Exit(1)
		}

		if result.ArtifactPath != "" {
			fmt.Printf("Artifact: %s\n", result.ArtifactPath)
		}
	},
}

func main() {
	runCmd.PersistentFlags().String("go-env", "development", "The go environment to run the command in.")
	runCmd.PersistentFlags().String("config", "config/scanner.yaml", "Path to the scanner configuration file.")
	runCmd.PersistentFlags().String("symbol", "", "Override the underlying symbol from the config.")
	runCmd.PersistentFlags().String("csv", "", "Replay an option chain snapshot from a csv file instead of fetching live data.")
	runCmd.PersistentFlags().Float64("price", 0, "The underlying price to use when replaying from csv.")
	runCmd.PersistentFlags().String("outDir", "", "The directory to write the run artifact to.")

	runCmd.Execute()
}
