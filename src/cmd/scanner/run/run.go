package run

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/data"
	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/eventservices"
	"github.com/optionsflow/optionsflow/src/pipeline"
	"github.com/optionsflow/optionsflow/src/utils"
)

type RunArgs struct {
	GoEnv        string
	ConfigPath   string
	Symbol       string
	SnapshotCSV  string
	CurrentPrice float64
	OutDir       string
}

type RunResult struct {
	Recommendations *eventmodels.TradingRecommendationSet
	ArtifactPath    string
}

func loadSnapshot(ctx context.Context, args RunArgs, config *eventservices.ScannerConfigYAML) (*eventmodels.MarketSnapshot, float64, error) {
	symbol := args.Symbol
	if symbol == "" {
		symbol = config.Symbol
	}

	if args.SnapshotCSV != "" {
		contracts, err := data.LoadSnapshotCSV(args.SnapshotCSV)
		if err != nil {
			return nil, 0, fmt.Errorf("loadSnapshot: failed to load csv: %w", err)
		}

		snapshot, err := eventmodels.NewMarketSnapshot(symbol, time.Now().UTC(), contracts, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("loadSnapshot: failed to build snapshot: %w", err)
		}

		return snapshot, args.CurrentPrice, nil
	}

	polygonApiKey, err := utils.GetEnv("POLYGON_API_KEY")
	if err != nil {
		return nil, 0, fmt.Errorf("loadSnapshot: $POLYGON_API_KEY not set: %w", err)
	}

	fetcher := data.NewPolygonFetcher(polygonApiKey)

	price, err := fetcher.FetchCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("loadSnapshot: failed to fetch current price: %w", err)
	}

	contracts, err := fetcher.FetchOptionChain(ctx, symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("loadSnapshot: failed to fetch option chain: %w", err)
	}

	snapshot, err := eventmodels.NewMarketSnapshot(symbol, time.Now().UTC(), contracts, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("loadSnapshot: failed to build snapshot: %w", err)
	}

	return snapshot, price, nil
}

func Run(args RunArgs) (RunResult, error) {
	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		log.Fatalf("missing PROJECTS_DIR environment variable")
	}

	if err := utils.InitEnvironmentVariables(projectsDir, args.GoEnv); err != nil {
		log.Fatalf("error loading environment variables: %v", err)
	}

	config, err := eventservices.LoadScannerConfig(args.ConfigPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: failed to load scanner config: %w", err)
	}

	ctx := context.Background()

	snapshot, currentPrice, err := loadSnapshot(ctx, args, config)
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	log.Infof("Loaded snapshot of %d contracts for %s", len(snapshot.Contracts), snapshot.UnderlyingSymbol)

	orchestrator, err := eventservices.BuildOrchestrator(config.ProfileA, pipeline.NewStageCache())
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: failed to build orchestrator: %w", err)
	}

	result, err := orchestrator.Run(ctx, snapshot, currentPrice)
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: orchestrator run failed: %w", err)
	}

	log.Infof("Run %s completed with status %s in %v", result.RunID, result.Status, result.FinishedAt.Sub(result.StartedAt))

	for _, diag := range result.Diagnostics {
		log.WithFields(log.Fields{
			"detector": diag.Detector,
			"status":   diag.Status,
			"cacheHit": diag.CacheHit,
			"signals":  diag.SignalCount,
			"skipped":  diag.RecordsSkipped,
		}).Info("stage complete")
	}

	if result.Recommendations == nil {
		return RunResult{}, fmt.Errorf("Run: all stages failed, see diagnostics above")
	}

	fmt.Println(result.Recommendations.String())

	runResult := RunResult{Recommendations: result.Recommendations}

	if args.OutDir != "" {
		artifact := eventmodels.NewRecommendationArtifactDTO(result, eventservices.Criteria(config.ProfileA))

		artifactPath, err := data.WriteRunArtifact(args.OutDir, artifact)
		if err != nil {
			return RunResult{}, fmt.Errorf("Run: failed to write artifact: %w", err)
		}

		log.Infof("Wrote artifact to %s", artifactPath)

		runResult.ArtifactPath = artifactPath
	}

	return runResult, nil
}
