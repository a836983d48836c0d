package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// utf8BOM lets spreadsheet software detect UTF-8 in CSV output.
const utf8BOM = "\xEF\xBB\xBF"

func createFile(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// --- JSON Storage ---

// JSONStorage writes records as a JSON array to a file on Close.
type JSONStorage struct {
	path    string
	records []types.NewsRecord
	closed  bool
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &JSONStorage{
		path:    outputPath,
		records: make([]types.NewsRecord, 0),
		logger:  logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(records []types.NewsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStorageClosed
	}
	s.records = append(s.records, records...)
	s.logger.Debug("records buffered", "count", len(records), "total", len(s.records))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.records); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSON: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.records))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	f, err := createFile(outputPath)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(records []types.NewsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return types.ErrStorageClosed
	}

	for _, rec := range records {
		if err := s.enc.Encode(rec); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	err := s.file.Close()
	s.file = nil
	return err
}

// --- CSV Storage ---

// CSVStorage writes records as CSV rows under a fixed header, prefixed
// with a UTF-8 byte order mark. The header is written even when no record
// follows.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage and writes the header row.
func NewCSVStorage(outputPath string, header []string, logger *slog.Logger) (*CSVStorage, error) {
	if len(header) != len(types.FieldNames) {
		return nil, fmt.Errorf("csv header needs %d labels, got %d", len(types.FieldNames), len(header))
	}

	f, err := createFile(outputPath)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(utf8BOM); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV header: %w", err)}
	}

	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(records []types.NewsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return types.ErrStorageClosed
	}

	for _, rec := range records {
		if err := s.writer.Write(rec.Fields()); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	s.writer.Flush()
	werr := s.writer.Error()
	err := s.file.Close()
	s.file = nil
	if werr != nil {
		return &types.StorageError{Backend: s.Name(), Err: werr}
	}
	return err
}

// NewFileStorage creates the file-based storage for format at outputPath.
// header labels the CSV columns and is ignored by the JSON formats.
func NewFileStorage(format, outputPath string, header []string, logger *slog.Logger) (Storage, error) {
	switch format {
	case "json":
		return NewJSONStorage(outputPath, logger)
	case "jsonl":
		return NewJSONLStorage(outputPath, logger)
	case "csv":
		return NewCSVStorage(outputPath, header, logger)
	default:
		return nil, fmt.Errorf("unsupported storage format: %s", format)
	}
}

// OutputPath places file in dir, swapping the extension to match format.
func OutputPath(dir, file, format string) string {
	ext := filepath.Ext(file)
	base := file[:len(file)-len(ext)]
	return filepath.Join(dir, base+"."+format)
}
