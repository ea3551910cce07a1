package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/bhmob/bhlake/internal/errors"
)

// Options configures parquet output.
type Options struct {
	// Compression algorithm.
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22).
	CompressionLevel int
}

// CompressionType represents a parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Store binds a set of parquet options and a logger for the write path.
type Store struct {
	opts Options
	log  *slog.Logger
}

// NewStore creates a store with the given options.
func NewStore(opts Options, log *slog.Logger) *Store {
	return &Store{opts: opts, log: log}
}

// Options returns the store's parquet options.
func (s *Store) Options() Options { return s.opts }

// WriteFile writes rows to a single parquet file at path.
func WriteFile[T any](path string, rows []T, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create file")
	}

	writer := parquet.NewGenericWriter[T](f,
		parquet.Compression(getCompression(opts.Compression)),
	)
	if _, err := writer.Write(rows); err != nil {
		f.Close()
		return errors.Wrap(err, "write rows")
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return errors.Wrap(err, "close writer")
	}
	return f.Close()
}

// ReadFile reads all rows from a single parquet file.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	if len(rows) == 0 {
		return rows, nil
	}
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read rows")
	}
	return rows[:n], nil
}

// ReadTable reads and concatenates all partition files of a table.
func ReadTable[T any](dir string) ([]T, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewMissingSource(dir)
	}

	var all []T
	for _, file := range files {
		rows, err := ReadFile[T](file)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", file)
		}
		all = append(all, rows...)
	}
	return all, nil
}

// WriteSnapshot writes rows as a new immutable bronze snapshot:
// base/dataset/year=YYYY/month=MM/day=DD/dataset_YYYYMMDD_HHMMSS.parquet.
// Prior snapshots are never touched.
func WriteSnapshot[T any](s *Store, base, dataset string, rows []T, at time.Time) (string, error) {
	partition, err := PartitionPath(filepath.Join(base, dataset), at)
	if err != nil {
		return "", err
	}

	path := filepath.Join(partition, dataset+"_"+TimestampSuffix(at)+".parquet")
	if err := WriteFile(path, rows, s.opts); err != nil {
		return "", err
	}

	s.log.Info("snapshot written", "path", path, "records", len(rows))
	return path, nil
}

// AppendByDate writes rows into the table's date partitions, one new
// uniquely named file per touched date. Existing partition files are left
// in place, so a date partition accumulates across runs. dateOf must return
// the row's partition date as YYYY-MM-DD.
func AppendByDate[T any](s *Store, base, table string, rows []T, at time.Time, dateOf func(T) string) (string, error) {
	tablePath := filepath.Join(base, table)

	byDate := make(map[string][]T)
	for _, row := range rows {
		date := dateOf(row)
		byDate[date] = append(byDate[date], row)
	}

	suffix := TimestampSuffix(at)
	for date, part := range byDate {
		partition, err := DatePartition(tablePath, date)
		if err != nil {
			return "", err
		}
		path := filepath.Join(partition, table+"_"+suffix+".parquet")
		if err := WriteFile(path, part, s.opts); err != nil {
			return "", err
		}
		s.log.Info("partition appended", "path", path, "records", len(part))
	}

	s.log.Info("table written", "table", tablePath, "records", len(rows), "partitions", len(byDate))
	return tablePath, nil
}

// Overwrite replaces the table's entire content with rows. Used for
// dimension and aggregate tables, which are recomputed in full each run.
// Not safe for concurrent writers; external serialization is assumed.
func Overwrite[T any](s *Store, base, table string, rows []T) (string, error) {
	tablePath := filepath.Join(base, table)

	if err := os.RemoveAll(tablePath); err != nil {
		return "", errors.Wrap(err, "clear table")
	}
	if err := os.MkdirAll(tablePath, 0o755); err != nil {
		return "", errors.Wrap(err, "create table")
	}

	path := filepath.Join(tablePath, table+".parquet")
	if err := WriteFile(path, rows, s.opts); err != nil {
		return "", err
	}

	s.log.Info("table overwritten", "table", tablePath, "records", len(rows))
	return tablePath, nil
}
