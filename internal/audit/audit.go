package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Reporter saves JSON reports, such as a failed integrity check, under Dir.
type Reporter struct {
	Dir string
}

func NewReporter(dir string) *Reporter {
	return &Reporter{
		Dir: dir,
	}
}

// SaveJSON saves the provided data as JSON to a file with a UUID4 filename
// and returns the full path.
func (r *Reporter) SaveJSON(data any) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", fmt.Errorf("failed to ensure report directory: %w", err)
	}

	filename := fmt.Sprintf("%s.json", uuid.New().String())
	path := filepath.Join(r.Dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	slog.Debug("Saved report", "path", path)
	return path, nil
}

// ensureDir creates the report directory if it doesn't exist
func (r *Reporter) ensureDir() error {
	if _, err := os.Stat(r.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(r.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return nil
}
