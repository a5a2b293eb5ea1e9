package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists site data and the request log in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the database at dbPath and ensures the
// schema exists.
func NewSQLite(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Op: "open", Err: err}
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY between the fetch loop and the request log.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hardware (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_key TEXT NOT NULL,
			hardware_key TEXT NOT NULL,
			name TEXT,
			type_code INTEGER,
			manufacturer TEXT,
			model TEXT,
			serial_number TEXT,
			status TEXT,
			last_updated TEXT,
			created_at TEXT,
			UNIQUE(site_key, hardware_key)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_key TEXT NOT NULL,
			alert_key TEXT NOT NULL,
			name TEXT,
			type TEXT,
			severity TEXT,
			status TEXT,
			last_updated TEXT,
			created_at TEXT,
			UNIQUE(site_key, alert_key)
		)`,
		`CREATE TABLE IF NOT EXISTS modeling (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_key TEXT NOT NULL UNIQUE,
			system_size_kw REAL,
			module_count INTEGER,
			inverter_count INTEGER,
			tilt_angle REAL,
			azimuth_angle REAL,
			last_updated TEXT,
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS request_log (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			payload TEXT,
			response TEXT,
			status INTEGER,
			latency_ms INTEGER,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_created ON request_log(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction with guaranteed commit-or-rollback.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		s.logger.Error("store.tx_rolled_back", zap.String("op", op), zap.Error(err))
		return &StorageError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

// key converts a record key to its column value; an empty key becomes NULL so
// the NOT NULL constraint rejects records that lost their identity upstream.
func key(k string) any {
	if k == "" {
		return nil
	}
	return k
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func insertHardware(tx *sql.Tx, rec HardwareRecord) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO hardware (
			site_key, hardware_key, name, type_code, manufacturer,
			model, serial_number, status, last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key(rec.SiteKey), key(rec.HardwareKey), rec.Name, rec.TypeCode, rec.Manufacturer,
		rec.Model, rec.SerialNumber, rec.Status, rec.LastUpdated, nowStamp())
	return err
}

func insertAlert(tx *sql.Tx, rec AlertRecord) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO alerts (
			site_key, alert_key, name, type, severity,
			status, last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key(rec.SiteKey), key(rec.AlertKey), rec.Name, rec.Type, rec.Severity,
		rec.Status, rec.LastUpdated, nowStamp())
	return err
}

func insertModeling(tx *sql.Tx, rec ModelingRecord) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO modeling (
			site_key, system_size_kw, module_count, inverter_count,
			tilt_angle, azimuth_angle, last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key(rec.SiteKey), rec.SystemSizeKW, rec.ModuleCount, rec.InverterCount,
		rec.TiltAngle, rec.AzimuthAngle, rec.LastUpdated, nowStamp())
	return err
}

func (s *SQLiteStore) UpsertHardware(ctx context.Context, rec HardwareRecord) error {
	return s.withTx(ctx, "upsert_hardware", func(tx *sql.Tx) error {
		return insertHardware(tx, rec)
	})
}

func (s *SQLiteStore) UpsertAlert(ctx context.Context, rec AlertRecord) error {
	return s.withTx(ctx, "upsert_alert", func(tx *sql.Tx) error {
		return insertAlert(tx, rec)
	})
}

func (s *SQLiteStore) UpsertModeling(ctx context.Context, rec ModelingRecord) error {
	return s.withTx(ctx, "upsert_modeling", func(tx *sql.Tx) error {
		return insertModeling(tx, rec)
	})
}

// SaveSite persists all records of one site atomically: either every record
// lands or none do.
func (s *SQLiteStore) SaveSite(ctx context.Context, siteKey string, hardware []HardwareRecord, alerts []AlertRecord, modeling *ModelingRecord) error {
	return s.withTx(ctx, "save_site", func(tx *sql.Tx) error {
		for _, rec := range hardware {
			if err := insertHardware(tx, rec); err != nil {
				return err
			}
		}
		for _, rec := range alerts {
			if err := insertAlert(tx, rec); err != nil {
				return err
			}
		}
		if modeling != nil {
			if err := insertModeling(tx, *modeling); err != nil {
				return err
			}
		}
		s.logger.Debug("store.site_saved",
			zap.String("site", siteKey),
			zap.Int("hardware", len(hardware)),
			zap.Int("alerts", len(alerts)))
		return nil
	})
}

// AppendRequest adds one entry to the append-only request log.
func (s *SQLiteStore) AppendRequest(ctx context.Context, rec RequestRecord) error {
	return s.withTx(ctx, "append_request", func(tx *sql.Tx) error {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(`
			INSERT INTO request_log (id, endpoint, method, payload, response, status, latency_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			key(rec.ID), rec.Endpoint, rec.Method, rec.Payload, rec.Response,
			rec.Status, rec.LatencyMS, createdAt.Format(time.RFC3339Nano))
		return err
	})
}

func (s *SQLiteStore) GetSiteHardware(ctx context.Context, siteKey string) ([]HardwareRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_key, hardware_key, COALESCE(name,''), COALESCE(type_code,0),
		       COALESCE(manufacturer,''), COALESCE(model,''), COALESCE(serial_number,''),
		       COALESCE(status,''), COALESCE(last_updated,'')
		FROM hardware WHERE site_key = ? ORDER BY hardware_key`, siteKey)
	if err != nil {
		return nil, &StorageError{Op: "get_site_hardware", Err: err}
	}
	defer rows.Close()

	var results []HardwareRecord
	for rows.Next() {
		var rec HardwareRecord
		if err := rows.Scan(&rec.SiteKey, &rec.HardwareKey, &rec.Name, &rec.TypeCode,
			&rec.Manufacturer, &rec.Model, &rec.SerialNumber, &rec.Status, &rec.LastUpdated); err != nil {
			return nil, &StorageError{Op: "get_site_hardware", Err: err}
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetSiteAlerts(ctx context.Context, siteKey string) ([]AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_key, alert_key, COALESCE(name,''), COALESCE(type,''),
		       COALESCE(severity,''), COALESCE(status,''), COALESCE(last_updated,'')
		FROM alerts WHERE site_key = ? ORDER BY alert_key`, siteKey)
	if err != nil {
		return nil, &StorageError{Op: "get_site_alerts", Err: err}
	}
	defer rows.Close()

	var results []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(&rec.SiteKey, &rec.AlertKey, &rec.Name, &rec.Type,
			&rec.Severity, &rec.Status, &rec.LastUpdated); err != nil {
			return nil, &StorageError{Op: "get_site_alerts", Err: err}
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetModeling(ctx context.Context, siteKey string) (*ModelingRecord, error) {
	var rec ModelingRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT site_key, COALESCE(system_size_kw,0), COALESCE(module_count,0),
		       COALESCE(inverter_count,0), COALESCE(tilt_angle,0),
		       COALESCE(azimuth_angle,0), COALESCE(last_updated,'')
		FROM modeling WHERE site_key = ?`, siteKey).
		Scan(&rec.SiteKey, &rec.SystemSizeKW, &rec.ModuleCount, &rec.InverterCount,
			&rec.TiltAngle, &rec.AzimuthAngle, &rec.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get_modeling", Err: err}
	}
	return &rec, nil
}

// RequestLog returns the most recent request log entries, newest first.
func (s *SQLiteStore) RequestLog(ctx context.Context, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, method, COALESCE(payload,''), COALESCE(response,''),
		       COALESCE(status,0), COALESCE(latency_ms,0), created_at
		FROM request_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &StorageError{Op: "request_log", Err: err}
	}
	defer rows.Close()

	var results []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Endpoint, &rec.Method, &rec.Payload,
			&rec.Response, &rec.Status, &rec.LatencyMS, &createdAt); err != nil {
			return nil, &StorageError{Op: "request_log", Err: err}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM hardware`, &stats.HardwareCount},
		{`SELECT COUNT(*) FROM alerts`, &stats.AlertCount},
		{`SELECT COUNT(DISTINCT site_key) FROM hardware`, &stats.SiteCount},
		{`SELECT COUNT(*) FROM request_log`, &stats.RequestCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, &StorageError{Op: "stats", Err: err}
		}
	}
	return stats, nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
