package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Realtime store (MQTT) Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Realtime store backend: "mqtt", or "memory" for an offline demo
	StoreBackend string

	// Store layout
	StoreRoot      string // e.g., "DHARA"
	DevicePrefix   string // e.g., "Slave("
	IrrigationPath string // e.g., "{root}/{master}/{device}/Control/Irrigation"

	// Signal strength handling
	SignalMissingPolicy string // "sentinel" or "absent"
	SignalSentinel      float64

	// Local persisted state
	PrefsDriver     string
	PrefsDSN        string
	ProfileSeedFile string

	// ClickHouse archive Configuration
	ArchiveEnabled bool
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// HTTP adapter
	HTTPAddr    string
	CORSOrigins []string

	// Presentation helpers
	ExportPrefix string
	Timezone     string
	SessionGap   time.Duration

	// Connection retry
	ConnectMaxAttempts int

	// Logging
	LogLevel string
	LogFile  string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "agrosense-dashboard"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		StoreBackend: getEnv("STORE_BACKEND", "mqtt"),

		StoreRoot:      getEnv("STORE_ROOT", "DHARA"),
		DevicePrefix:   getEnv("DEVICE_PREFIX", "Slave("),
		IrrigationPath: getEnv("IRRIGATION_PATH", "{root}/{master}/{device}/Control/Irrigation"),

		SignalMissingPolicy: getEnv("SIGNAL_MISSING_POLICY", "sentinel"),
		SignalSentinel:      getEnvFloat("SIGNAL_SENTINEL", -100),

		PrefsDriver:     getEnv("PREFS_DRIVER", "sqlite"),
		PrefsDSN:        getEnv("PREFS_DSN", "agrosense.db"),
		ProfileSeedFile: getEnv("PROFILE_SEED_FILE", ""),

		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "agrosense"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		ExportPrefix: getEnv("EXPORT_PREFIX", "agrosense-data"),
		Timezone:     getEnv("TIMEZONE", "Local"),
		SessionGap:   getEnvDuration("SESSION_GAP", 30*time.Minute),

		ConnectMaxAttempts: max(getEnvInt("CONNECT_MAX_ATTEMPTS", 0), 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Warning: unknown timezone %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
