package sink

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"logbook/internal/telemetry"
)

const (
	samplesTable = "navigation_data"
	summaryTable = "hourly_navigation_summary"
)

// sqliteTimeLayout is fixed width so text comparison orders like time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name   string
	driver string
	dollar bool
	ddl    []string
}

var dialects = map[string]dialect{
	"postgres": {name: "postgres", driver: "postgres", dollar: true, ddl: postgresDDL},
	"sqlite":   {name: "sqlite", driver: "sqlite", ddl: sqliteDDL},
}

func (d dialect) placeholders(n, from int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		if d.dollar {
			b.WriteString("$" + strconv.Itoa(from+i))
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

func (d dialect) timeArg(t time.Time) any {
	if d.dollar {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// sampleFields are the navigation_data value columns. local_zone has no
// column there; only the push and stream sinks carry it.
var sampleFields, sampleColumns = columnSet()

func columnSet() ([]telemetry.Field, map[telemetry.Field]bool) {
	fields := make([]telemetry.Field, 0, len(telemetry.AllFields))
	set := make(map[telemetry.Field]bool, len(telemetry.AllFields))
	for _, f := range telemetry.AllFields {
		if f == telemetry.LocalZone {
			continue
		}
		fields = append(fields, f)
		set[f] = true
	}
	return fields, set
}

// SQL appends snapshots to navigation_data and hourly rollups to
// hourly_navigation_summary.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL opens a database with driver "postgres" or "sqlite".
func OpenSQL(driver, dsn string) (*SQL, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if d.name == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return &SQL{db: db, dialect: d}, nil
}

// NewSQL wraps an existing handle; driver selects the SQL dialect.
func NewSQL(db *sql.DB, driver string) (*SQL, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return &SQL{db: db, dialect: d}, nil
}

func (s *SQL) Name() string { return s.dialect.name }

func (s *SQL) Close() error { return s.db.Close() }

// EnsureSchema creates both tables when missing. Existing tables are kept.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQL) WriteSnapshot(ctx context.Context, rec telemetry.Record) error {
	fields := rec.Values.Present()
	cols := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	cols = append(cols, "timestamp")
	args = append(args, s.dialect.timeArg(rec.Time))
	for _, f := range fields {
		if !sampleColumns[f] {
			continue
		}
		cols = append(cols, string(f))
		args = append(args, columnValue(f, rec.Values[f]))
	}
	if len(cols) == 1 {
		return nil
	}

	q := "INSERT INTO " + samplesTable + " (" + strings.Join(cols, ", ") + ") VALUES (" + s.dialect.placeholders(len(args), 1) + ")"
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %s: %w", samplesTable, err)
	}
	return nil
}

func (s *SQL) Samples(ctx context.Context, from, to time.Time) ([]telemetry.Record, error) {
	cols := make([]string, 0, len(sampleFields)+1)
	cols = append(cols, "timestamp")
	for _, f := range sampleFields {
		cols = append(cols, string(f))
	}
	q := "SELECT " + strings.Join(cols, ", ") + " FROM " + samplesTable +
		" WHERE timestamp >= " + s.dialect.placeholders(1, 1) +
		" AND timestamp < " + s.dialect.placeholders(1, 2) +
		" ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, q, s.dialect.timeArg(from), s.dialect.timeArg(to))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", samplesTable, err)
	}
	defer rows.Close()

	var out []telemetry.Record
	for rows.Next() {
		var ts dbTime
		nums := make([]sql.NullFloat64, len(sampleFields))
		texts := make([]sql.NullString, len(sampleFields))
		dest := make([]any, 0, len(cols))
		dest = append(dest, &ts)
		for i, f := range sampleFields {
			if f.IsText() {
				dest = append(dest, &texts[i])
			} else {
				dest = append(dest, &nums[i])
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", samplesTable, err)
		}

		rec := telemetry.Record{Time: ts.t, Values: telemetry.Values{}}
		for i, f := range sampleFields {
			switch {
			case f.IsText() && texts[i].Valid:
				rec.Values[f] = telemetry.Text(texts[i].String)
			case !f.IsText() && nums[i].Valid:
				rec.Values[f] = telemetry.Number(nums[i].Float64)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", samplesTable, err)
	}
	return out, nil
}

var summaryColumns = []string{
	"hour", "TWA", "TWS", "AWA", "AWS", "Heading", "Speed",
	"Altitude", "Lattitude", "LatDir", "Longitude", "LonDir", "Depth", "Temp",
}

func (s *SQL) WriteSummary(ctx context.Context, sum telemetry.Summary) error {
	args := []any{
		s.dialect.timeArg(sum.Hour),
		nullable(sum.TWA), nullable(sum.TWS), nullable(sum.AWA), nullable(sum.AWS),
		nullable(sum.Heading), nullable(sum.Speed), nullable(sum.Altitude),
		nullable(sum.Latitude), nullableText(sum.LatDir),
		nullable(sum.Longitude), nullableText(sum.LonDir),
		nullable(sum.Depth), nullable(sum.Temp),
	}
	q := "INSERT INTO " + summaryTable + " (" + strings.Join(summaryColumns, ", ") + ") VALUES (" + s.dialect.placeholders(len(args), 1) + ")"
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %s: %w", summaryTable, err)
	}
	return nil
}

func (s *SQL) Summaries(ctx context.Context, limit int) ([]telemetry.Summary, error) {
	q := "SELECT id, " + strings.Join(summaryColumns, ", ") + " FROM " + summaryTable + " ORDER BY id DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT " + s.dialect.placeholders(1, 1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", summaryTable, err)
	}
	defer rows.Close()

	var out []telemetry.Summary
	for rows.Next() {
		var (
			sum                               telemetry.Summary
			hour                              dbTime
			twa, tws, awa, aws, hdg, spd, alt sql.NullFloat64
			lat, lon, depth, temp             sql.NullFloat64
			latDir, lonDir                    sql.NullString
		)
		if err := rows.Scan(&sum.ID, &hour, &twa, &tws, &awa, &aws, &hdg, &spd, &alt, &lat, &latDir, &lon, &lonDir, &depth, &temp); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", summaryTable, err)
		}
		sum.Hour = hour.t
		sum.TWA, sum.TWS, sum.AWA, sum.AWS = ptr(twa), ptr(tws), ptr(awa), ptr(aws)
		sum.Heading, sum.Speed, sum.Altitude = ptr(hdg), ptr(spd), ptr(alt)
		sum.Latitude, sum.Longitude = ptr(lat), ptr(lon)
		sum.LatDir, sum.LonDir = textPtr(latDir), textPtr(lonDir)
		sum.Depth, sum.Temp = ptr(depth), ptr(temp)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", summaryTable, err)
	}
	return out, nil
}

func columnValue(f telemetry.Field, v telemetry.Value) any {
	if v.IsText() {
		return v.String()
	}
	n, _ := v.Float()
	if f.IsInteger() {
		return int64(math.Round(n))
	}
	return n
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableText(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func textPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// dbTime scans timestamps stored natively (postgres) or as text (sqlite).
type dbTime struct {
	t time.Time
}

var textTimeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.t = time.Time{}
		return nil
	case time.Time:
		d.t = v.UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

var _ HistoryStore = (*SQL)(nil)
