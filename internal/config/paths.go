package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ReportPath returns the path for a report file in the output directory.
// Absolute names are returned unchanged.
func (c *Config) ReportPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(c.Report.OutputDir, filename)
}

// EnsureDirectories creates the report directory and, when logging to a
// file, the log directory
func (c *Config) EnsureDirectories() error {
	directories := []string{c.Report.OutputDir}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		directories = append(directories, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range directories {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}
