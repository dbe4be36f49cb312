package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/printdrop/internal/wizard"
)

const manifestFilename = "manifest.json"

// Manifest は送信された注文のうち、ワーカーが必要とする情報です。
type Manifest struct {
	JobID        string              `json:"jobId"`
	WizardID     string              `json:"wizardId"`
	Files        []ManifestFile      `json:"files"`
	PrintOptions wizard.PrintOptions `json:"printOptions"`
	Address      wizard.Address      `json:"address"`
	TotalCost    int64               `json:"totalCost"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// ManifestFile は保存済みの入力ファイルです。並び順はアップロード順です。
type ManifestFile struct {
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Pages        int    `json:"pages"`
}

// TotalPages は全ファイルのページ数の合計です。
func (m *Manifest) TotalPages() int {
	total := 0
	for _, f := range m.Files {
		total += f.Pages
	}
	return total
}

func writeManifest(jobDir string, manifest *Manifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest is nil")
	}
	path := filepath.Join(jobDir, manifestFilename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		file.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return file.Close()
}

func loadManifest(jobDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(manifest.Files) == 0 {
		return nil, fmt.Errorf("manifest has no input files")
	}
	return &manifest, nil
}
