package gold

import (
	"sort"
	"time"

	"github.com/bhmob/bhlake/internal/lineage"
	"github.com/bhmob/bhlake/internal/silver"
	"github.com/bhmob/bhlake/internal/storage"
)

// ActiveVehiclesRow is one (date, hour, period) group of the fleet
// activity table.
type ActiveVehiclesRow struct {
	Date           string    `parquet:"date"`
	Hour           int32     `parquet:"hour"`
	DayPeriod      string    `parquet:"day_period"`
	UniqueVehicles int64     `parquet:"unique_vehicles"`
	Records        int64     `parquet:"records"`
	Weekday        int32     `parquet:"weekday"`
	CreatedAt      time.Time `parquet:"_created_at"`
}

// ActiveVehicles counts distinct active vehicles per day period.
type ActiveVehicles struct {
	silverPath string
	goldPath   string
	deps       Deps
}

// NewActiveVehicles creates the fleet activity aggregator.
func NewActiveVehicles(silverPath, goldPath string, deps Deps) *ActiveVehicles {
	return &ActiveVehicles{silverPath: silverPath, goldPath: goldPath, deps: deps}
}

// Name returns the gold table name.
func (a *ActiveVehicles) Name() string { return TableActiveVehicles }

// Aggregate groups by (date, hour, day period), counting distinct vehicle
// ids and total rows. The weekday column is the first value seen per group.
func (a *ActiveVehicles) Aggregate() ([]ActiveVehiclesRow, error) {
	span := lineage.Begin("silver: "+silver.TablePositions, "aggregate_active_vehicles")

	records, err := readPositions(a.silverPath)
	if err != nil {
		span.AddMetadata("error", err.Error())
		return nil, err
	}
	span.AddMetadata("input_records", len(records))

	type groupKey struct {
		date   string
		hour   int32
		period string
	}
	type group struct {
		vehicles map[float64]bool
		records  int64
		weekday  int32
	}

	groups := make(map[groupKey]*group)
	for _, r := range records {
		key := groupKey{date: r.Date, hour: r.Hour, period: r.DayPeriod}
		g, ok := groups[key]
		if !ok {
			g = &group{vehicles: make(map[float64]bool), weekday: r.Weekday}
			groups[key] = g
		}
		g.records++
		if r.VehicleID != nil {
			g.vehicles[*r.VehicleID] = true
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].hour < keys[j].hour
	})

	createdAt := a.deps.now()
	rows := make([]ActiveVehiclesRow, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		rows = append(rows, ActiveVehiclesRow{
			Date:           key.date,
			Hour:           key.hour,
			DayPeriod:      key.period,
			UniqueVehicles: int64(len(g.vehicles)),
			Records:        g.records,
			Weekday:        g.weekday,
			CreatedAt:      createdAt,
		})
	}

	span.AddMetadata("output_records", len(rows))
	a.deps.Log.Info("aggregation complete", "table", a.Name(),
		"groups", len(rows), "lineage", span.Snapshot())
	return rows, nil
}

// Load overwrites the gold table.
func (a *ActiveVehicles) Load(rows []ActiveVehiclesRow) (string, error) {
	return storage.Overwrite(a.deps.Store, a.goldPath, TableActiveVehicles, rows)
}

// Run aggregates then loads.
func (a *ActiveVehicles) Run() (string, error) {
	rows, err := a.Aggregate()
	if err != nil {
		return "", err
	}
	return a.Load(rows)
}
