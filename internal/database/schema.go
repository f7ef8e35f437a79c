package database

// SQL schemas for all ClickHouse tables

const (
	// SensorReadingsTableSQL creates the sensor_readings table, one row per
	// (point, sensor key)
	SensorReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			timestamp DateTime64(3),
			master_id LowCardinality(String),
			device_id LowCardinality(String),
			sensor_key LowCardinality(String),
			value Float64
		) ENGINE = ReplacingMergeTree()
		ORDER BY (master_id, device_id, sensor_key, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// DeviceDailyViewSQL rolls readings up per device, key and day
	DeviceDailyViewSQL = `
		CREATE MATERIALIZED VIEW IF NOT EXISTS sensor_readings_daily
		ENGINE = AggregatingMergeTree()
		ORDER BY (master_id, device_id, sensor_key, day)
		AS SELECT
			master_id,
			device_id,
			sensor_key,
			toDate(timestamp) AS day,
			avgState(value) AS avg_value,
			countState() AS samples
		FROM sensor_readings
		GROUP BY master_id, device_id, sensor_key, day
	`
)

// AllTables returns all table creation SQL statements in order
func AllTables() []string {
	return []string{
		SensorReadingsTableSQL,
		DeviceDailyViewSQL,
	}
}
