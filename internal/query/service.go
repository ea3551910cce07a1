// Package query provides ad-hoc SQL over the lake's parquet files.
//
// It opens an in-memory DuckDB database and registers one view per lake
// table, each backed by a read_parquet glob over that table's partition
// tree. No data is copied; views read the files in place.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/bhmob/bhlake/internal/bronze"
	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/gold"
	"github.com/bhmob/bhlake/internal/silver"
)

// Service answers SQL queries over the lake.
type Service struct {
	mu sync.RWMutex

	db    *sql.DB
	views []View

	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// View is one registered lake table.
type View struct {
	Name  string
	Layer string
	Glob  string
}

// Result is a column-ordered query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// New opens an in-memory DuckDB and registers a view for every lake table.
// Views over tables with no files yet fail to register and are skipped, so
// a fresh lake still gets a console over whatever exists.
func New(cfg *config.Config) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Service{db: db, views: lakeViews(cfg)}

	for _, v := range s.views {
		stmt := fmt.Sprintf(
			"CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet('%s')",
			v.Name, v.Glob)
		if _, err := db.Exec(stmt); err != nil {
			continue
		}
	}

	return s, nil
}

// lakeViews enumerates every table the three layers can hold.
func lakeViews(cfg *config.Config) []View {
	bronzeGlob := func(dataset string) string {
		return filepath.Join(cfg.Layers.Bronze.Path, dataset, "**", "*.parquet")
	}
	silverGlob := func(table string) string {
		return filepath.Join(cfg.Layers.Silver.Path, table, "**", "*.parquet")
	}
	goldGlob := func(table string) string {
		return filepath.Join(cfg.Layers.Gold.Path, table, "*.parquet")
	}

	return []View{
		{Name: "bronze_" + bronze.DatasetPositions, Layer: "bronze", Glob: bronzeGlob(bronze.DatasetPositions)},
		{Name: "bronze_" + bronze.DatasetLines, Layer: "bronze", Glob: bronzeGlob(bronze.DatasetLines)},
		{Name: "silver_" + silver.TablePositions, Layer: "silver", Glob: silverGlob(silver.TablePositions)},
		{Name: "silver_" + silver.TableLines, Layer: "silver", Glob: silverGlob(silver.TableLines)},
		{Name: gold.TableSpeedByLine, Layer: "gold", Glob: goldGlob(gold.TableSpeedByLine)},
		{Name: gold.TableActiveVehicles, Layer: "gold", Glob: goldGlob(gold.TableActiveVehicles)},
		{Name: gold.TableLineCoverage, Layer: "gold", Glob: goldGlob(gold.TableLineCoverage)},
		{Name: gold.TableHotspots, Layer: "gold", Glob: goldGlob(gold.TableHotspots)},
	}
}

// Close releases the database.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Views lists the registered lake views, sorted by name.
func (s *Service) Views() []View {
	out := make([]View, len(s.views))
	copy(out, s.views)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs a raw SQL statement and returns all rows.
func (s *Service) Execute(ctx context.Context, query string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(result.Rows))
	return result, rows.Err()
}

// Stats returns cumulative query statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
