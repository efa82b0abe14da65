package csvexport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink stores a finished document and returns where it went.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink writes documents into Dir. Absolute names ignore Dir.
type FileSink struct {
	Dir string
}

// Save writes data atomically via a temp file in the target directory.
func (s FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("output name is empty")
	}
	path := name
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, name)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "figexport-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return path, nil
}

// WriterSink copies documents to W, e.g. stdout.
type WriterSink struct {
	W     io.Writer
	Label string
}

// Save writes data to the underlying writer. The name is ignored.
func (s WriterSink) Save(ctx context.Context, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.W.Write(data); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if s.Label != "" {
		return s.Label, nil
	}
	return "stdout", nil
}
