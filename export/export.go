// Package export writes reconstructed patient tables to disk as CSV and
// Parquet files for downstream survival model fitting.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/parquet-go/parquet-go"

	"github.com/avasseur/ipd-api/guyot/entities"
	"github.com/avasseur/ipd-api/interfaces"
	"github.com/avasseur/ipd-api/logging"
)

// Compile-time check to ensure FileExporter implements Exporter
var _ interfaces.Exporter = (*FileExporter)(nil)

// FileExporter writes export files under a single directory.
type FileExporter struct {
	dir string
}

// NewFileExporter creates an exporter rooted at dir, creating it if needed.
func NewFileExporter(dir string) (*FileExporter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &FileExporter{dir: dir}, nil
}

// Dir returns the export directory.
func (e *FileExporter) Dir() string {
	return e.dir
}

// sanitizeName keeps endpoint and arm labels filesystem-safe. Anything
// outside letters, digits, dash and underscore becomes an underscore.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

func (e *FileExporter) filePath(result *entities.ReconstructionResult, ext string) string {
	name := fmt.Sprintf("ipd_%s_%s.%s", sanitizeName(result.Endpoint), sanitizeName(result.Arm), ext)
	return filepath.Join(e.dir, name)
}

// WriteCSV writes the patient table as a four-column CSV file and returns
// the file path.
func (e *FileExporter) WriteCSV(result *entities.ReconstructionResult) (string, error) {
	path := e.filePath(result, "csv")

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to create csv export %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close csv export file", "path", path, "error", err)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"patient_id", "time", "event", "arm"}); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range result.Records {
		row := []string{
			strconv.Itoa(rec.PatientID),
			strconv.FormatFloat(rec.Time, 'f', 6, 64),
			strconv.Itoa(rec.Event),
			rec.Arm,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv export: %w", err)
	}

	return path, nil
}

// WriteParquet writes the patient table as a Parquet file and returns the
// file path.
func (e *FileExporter) WriteParquet(result *entities.ReconstructionResult) (string, error) {
	path := e.filePath(result, "parquet")

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to create parquet export %s: %w", path, err)
	}

	writer := parquet.NewGenericWriter[entities.PatientRecord](file)
	if _, err := writer.Write(result.Records); err != nil {
		_ = writer.Close()
		_ = file.Close()
		return "", fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to finalize parquet export: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close parquet export %s: %w", path, err)
	}

	return path, nil
}

// Sweep removes export files older than maxAge and returns how many were
// deleted.
func (e *FileExporter) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read export directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "ipd_") {
			continue
		}
		if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".parquet") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.dir, name)); err != nil {
			logging.Warn("Failed to remove expired export", "file", name, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}
