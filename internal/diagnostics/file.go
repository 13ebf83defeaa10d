package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the error body to a single HTML file, replacing the
// previous capture.
type FileSink struct {
	path string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{path: filepath.Join(dir, DefaultName+".html")}
}

func (f *FileSink) Path() string {
	return f.path
}

func (f *FileSink) Capture(_ context.Context, report Report) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create diagnostics dir: %w", err)
	}

	// Each capture gets its own temp file so concurrent captures never
	// rename each other's data.
	tmp, err := os.CreateTemp(filepath.Dir(f.path), DefaultName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create diagnostics file: %w", err)
	}
	tmpFile := tmp.Name()

	if _, err := tmp.WriteString(report.Body); err != nil {
		tmp.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write diagnostics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write diagnostics file: %w", err)
	}
	if err := os.Chmod(tmpFile, 0o644); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write diagnostics file: %w", err)
	}

	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to replace diagnostics file: %w", err)
	}
	return nil
}
