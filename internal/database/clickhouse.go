package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"agrosense/internal/models"
	"agrosense/pkg/logger"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// DailyAverage is one device's mean for one key on one day
type DailyAverage struct {
	Day       time.Time `json:"day"`
	SensorKey string    `json:"sensorKey"`
	Avg       float64   `json:"avg"`
	Samples   uint64    `json:"samples"`
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	// Initialize schema
	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.Printf("Database schema initialized successfully")
	return nil
}

// SaveReadings batch-inserts flattened rows
func (db *ClickHouseDB) SaveReadings(ctx context.Context, rows []models.ReadingRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, `
		INSERT INTO sensor_readings (timestamp, master_id, device_id, sensor_key, value)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare readings batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(r.Timestamp, r.MasterID, r.DeviceID, r.SensorKey, r.Value); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append reading: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert readings: %w", err)
	}

	logger.Debugf("Saved %d readings to ClickHouse", len(rows))
	return nil
}

// LastTimestamp returns the newest archived timestamp of a master's device,
// or the zero time when nothing is archived yet
func (db *ClickHouseDB) LastTimestamp(ctx context.Context, masterID, deviceID string) (time.Time, error) {
	query := `
		SELECT max(timestamp), count()
		FROM sensor_readings
		WHERE master_id = ? AND device_id = ?
	`

	var last time.Time
	var count uint64
	if err := db.conn.QueryRow(ctx, query, masterID, deviceID).Scan(&last, &count); err != nil {
		return time.Time{}, fmt.Errorf("failed to query last timestamp: %w", err)
	}
	if count == 0 {
		return time.Time{}, nil
	}
	return last, nil
}

// DailyAverages returns per-day, per-key means for a master's device in [from, to]
func (db *ClickHouseDB) DailyAverages(ctx context.Context, masterID, deviceID string, from, to time.Time) ([]DailyAverage, error) {
	query := `
		SELECT
			day,
			sensor_key,
			avgMerge(avg_value) AS avg_value,
			countMerge(samples) AS samples
		FROM sensor_readings_daily
		WHERE master_id = ? AND device_id = ? AND day >= toDate(?) AND day <= toDate(?)
		GROUP BY day, sensor_key
		ORDER BY day, sensor_key
	`

	rows, err := db.conn.Query(ctx, query, masterID, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily averages: %w", err)
	}
	defer rows.Close()

	var out []DailyAverage
	for rows.Next() {
		var d DailyAverage
		if err := rows.Scan(&d.Day, &d.SensorKey, &d.Avg, &d.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan daily average: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily averages: %w", err)
	}
	return out, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
