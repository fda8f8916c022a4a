package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

// WriteRunArtifact persists the versioned run artifact consumed by the
// external report/dashboard writer.
func WriteRunArtifact(outDir string, artifact *eventmodels.RecommendationArtifactDTO) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("WriteRunArtifact: failed to create %s: %w", outDir, err)
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("run_%s.json", artifact.RunID))

	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("WriteRunArtifact: failed to marshal artifact: %w", err)
	}

	if err := os.WriteFile(outPath, payload, 0644); err != nil {
		return "", fmt.Errorf("WriteRunArtifact: failed to write %s: %w", outPath, err)
	}

	log.Infof("wrote run artifact to %s", outPath)

	return outPath, nil
}
