package config

import (
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the grouping service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the HTTP API, health and metrics endpoints.
// - ProviderType: The type of geocoding provider to use (google, nominatim, visicom).
// - APIKey: The API key for accessing the provider (Google and Visicom).
// - Workers: The number of concurrent geocoding workers.
// - Interval: The duration between batch grouping runs.
// - PlotDir: Directory for plots of saved runs, empty to disable.
// - Grouping: Clustering and size bounds.
// - Database: Configuration settings for the PostgreSQL database.
//
// Every field is read by key (CONVOY_MIN_SIZE, DB_HOST, ...). A file named by
// CONVOY_CONFIG_FILE uses the same flat keys, case-insensitively; environment
// variables take precedence over it.
type Config struct {
	Env          string
	Port         int
	ProviderType string
	APIKey       string
	Workers      int
	Interval     time.Duration
	AddrPrefix   string // Address prefix for more accurate geocoding
	PlotDir      string // PlotDir receives a PNG per saved run when set
	Grouping     GroupingConfig
	Database     PostgresConfig
}

// GroupingConfig holds the clustering parameters.
type GroupingConfig struct {
	MinSize   int   // MinSize is the smallest desired group.
	MaxSize   int   // MaxSize is the largest desired group.
	Clusters  int   // Clusters is the initial k, zero for automatic.
	Seed      int64 // Seed drives k-means initialisation.
	Rebalance bool  // Rebalance enables size-constrained post-processing.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// Enabled reports whether a database has been configured.
func (pc PostgresConfig) Enabled() bool {
	return pc.Host != ""
}

var defaults = map[string]string{
	"CONVOY_ENV":            "production",
	"CONVOY_HTTP_PORT":      "8080",
	"CONVOY_PROVIDER_TYPE":  "nominatim",
	"CONVOY_WORKERS":        "4",
	"CONVOY_INTERVAL":       "10m",
	"CONVOY_MIN_SIZE":       "4",
	"CONVOY_MAX_SIZE":       "6",
	"CONVOY_CLUSTERS":       "2",
	"CONVOY_SEED":           "42",
	"CONVOY_REBALANCE":      "true",
	"DB_PORT":               "5432",
	"CONVOY_ADDRESS_PREFIX": "",
}

// MustLoad reads configuration from the environment, an optional .env file and
// an optional YAML file named by CONVOY_CONFIG_FILE. It panics on values that
// cannot be parsed.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONVOY_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	interval, err := time.ParseDuration(v.GetString("CONVOY_INTERVAL"))
	if err != nil {
		panic("failed to parse interval from configuration")
	}

	port, err := strconv.Atoi(v.GetString("CONVOY_HTTP_PORT"))
	if err != nil {
		panic("failed to parse port for http server from configuration")
	}

	workers, err := strconv.Atoi(v.GetString("CONVOY_WORKERS"))
	if err != nil || workers < 1 {
		panic("failed to parse workers from configuration, must be a positive integer")
	}

	grouping := mustLoadGrouping(v)

	return &Config{
		Env:          v.GetString("CONVOY_ENV"),
		Port:         port,
		ProviderType: v.GetString("CONVOY_PROVIDER_TYPE"),
		APIKey:       v.GetString("CONVOY_PROVIDER_KEY"),
		Workers:      workers,
		Interval:     interval,
		AddrPrefix:   v.GetString("CONVOY_ADDRESS_PREFIX"),
		PlotDir:      v.GetString("CONVOY_PLOT_DIR"),
		Grouping:     grouping,
		Database: PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
	}
}

func mustLoadGrouping(v *viper.Viper) GroupingConfig {
	minSize, err := strconv.Atoi(v.GetString("CONVOY_MIN_SIZE"))
	if err != nil {
		panic("failed to parse minimum group size from configuration")
	}

	maxSize, err := strconv.Atoi(v.GetString("CONVOY_MAX_SIZE"))
	if err != nil {
		panic("failed to parse maximum group size from configuration")
	}

	if minSize < 1 || maxSize < minSize {
		panic("group size bounds must satisfy 1 <= min <= max")
	}

	clusters, err := strconv.Atoi(v.GetString("CONVOY_CLUSTERS"))
	if err != nil || clusters < 0 {
		panic("failed to parse cluster count from configuration")
	}

	seed, err := strconv.ParseInt(v.GetString("CONVOY_SEED"), 10, 64)
	if err != nil {
		panic("failed to parse seed from configuration")
	}

	rebalance, err := strconv.ParseBool(v.GetString("CONVOY_REBALANCE"))
	if err != nil {
		panic("failed to parse rebalance flag from configuration")
	}

	return GroupingConfig{
		MinSize:   minSize,
		MaxSize:   maxSize,
		Clusters:  clusters,
		Seed:      seed,
		Rebalance: rebalance,
	}
}
