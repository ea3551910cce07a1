package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bhmob/bhlake/internal/errors"
)

// PartitionPath returns the hierarchical partition directory for a
// timestamp (base/year=YYYY/month=MM/day=DD), creating it if absent.
func PartitionPath(base string, t time.Time) (string, error) {
	path := filepath.Join(
		base,
		fmt.Sprintf("year=%04d", t.Year()),
		fmt.Sprintf("month=%02d", int(t.Month())),
		fmt.Sprintf("day=%02d", t.Day()),
	)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", errors.Wrap(err, "create partition")
	}
	return path, nil
}

// DatePartitionPath returns the flat date partition directory for a
// timestamp (base/date=YYYY-MM-DD), creating it if absent.
func DatePartitionPath(base string, t time.Time) (string, error) {
	return DatePartition(base, t.Format("2006-01-02"))
}

// DatePartition returns the flat partition directory for an already
// formatted YYYY-MM-DD date, creating it if absent.
func DatePartition(base, date string) (string, error) {
	path := filepath.Join(base, "date="+date)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", errors.Wrap(err, "create partition")
	}
	return path, nil
}

// TimestampSuffix formats a timestamp for unique file names.
func TimestampSuffix(t time.Time) string {
	return t.Format("20060102_150405")
}

// LatestFile returns the most recently modified parquet file found
// recursively under dir. ErrMissingSource when none exist.
func LatestFile(dir string) (string, error) {
	var latest string
	var latestMod time.Time

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".parquet") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewMissingSource(dir)
		}
		return "", errors.Wrap(err, "scan dataset")
	}
	if latest == "" {
		return "", errors.NewMissingSource(dir)
	}
	return latest, nil
}

// ListFiles returns all parquet files found recursively under dir, sorted
// lexically. An absent directory yields an empty list.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scan table")
	}
	return files, nil
}
