package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ace-status/internal/feed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// StopSource serves the get_stops feed from a GTFS stops table and passes
// every other feed through to next.
type StopSource struct {
	db   *sql.DB
	next feed.Source
}

func NewStopSource(db *sql.DB, next feed.Source) *StopSource {
	return &StopSource{db: db, next: next}
}

func (s *StopSource) Fetch(ctx context.Context, service string) (feed.Records, error) {
	if service != feed.FeedStops {
		return s.next.Fetch(ctx, service)
	}
	stops, err := fetchStops(ctx, s.db)
	if err != nil {
		return nil, err
	}
	recs := make(feed.Records, 0, len(stops))
	for _, st := range stops {
		b, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		recs = append(recs, b)
	}
	return recs, nil
}

// stopRow mirrors the provider's stop record so rows decode like feed data.
type stopRow struct {
	ID        string  `json:"id"`
	RouteID   string  `json:"rid,omitempty"`
	Name      string  `json:"name"`
	ShortName string  `json:"shortName,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// fetchStops reads all stops ordered by stop_id.
func fetchStops(ctx context.Context, db *sql.DB) ([]stopRow, error) {
	// Prefer stop_lat/stop_lon, but support PostGIS stop_loc geography as fallback
	cols, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon", "stop_loc", "stop_code")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	code := "''"
	if cols["stop_code"] {
		code = "COALESCE(stop_code::text, '')"
	}
	var lat, lon string
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		lat, lon = "COALESCE(stop_lat, 0)", "COALESCE(stop_lon, 0)"
	case cols["stop_loc"]:
		lat, lon = "COALESCE(ST_Y(stop_loc::geometry), 0)", "COALESCE(ST_X(stop_loc::geometry), 0)"
	default:
		return nil, fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
	}
	q := fmt.Sprintf(`SELECT stop_id::text, COALESCE(stop_name, ''), %s, %s, %s
             FROM stops ORDER BY stop_id`, code, lat, lon)

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []stopRow
	for rows.Next() {
		var s stopRow
		if err := rows.Scan(&s.ID, &s.Name, &s.ShortName, &s.Lat, &s.Lng); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
