package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig describes the raw inputs consumed by the prepare step.
type DataConfig struct {
	RawDir      string            `yaml:"raw_dir" mapstructure:"raw_dir"`
	Incidents   []string          `yaml:"incidents" mapstructure:"incidents"` // files or directories of police.uk street CSVs
	Boundaries  string            `yaml:"boundaries" mapstructure:"boundaries"`
	Deprivation string            `yaml:"deprivation" mapstructure:"deprivation"`
	Population  string            `yaml:"population" mapstructure:"population"`
	Venues      string            `yaml:"venues" mapstructure:"venues"`
	Region      string            `yaml:"region" mapstructure:"region"` // area name prefix, e.g. "Bristol"
	VenueTypes  []string          `yaml:"venue_types" mapstructure:"venue_types"`
	VenueEncode string            `yaml:"venue_encoding" mapstructure:"venue_encoding"`
	Columns     ColumnConfig      `yaml:"columns" mapstructure:"columns"`
	Sheets      map[string]string `yaml:"sheets" mapstructure:"sheets"` // xlsx sheet names keyed by "deprivation" / "population"
}

// ColumnConfig maps dataset fields to source column names.
type ColumnConfig struct {
	BoundaryCode      string `yaml:"boundary_code" mapstructure:"boundary_code"`
	BoundaryName      string `yaml:"boundary_name" mapstructure:"boundary_name"`
	BoundaryLocalName string `yaml:"boundary_local_name" mapstructure:"boundary_local_name"`

	DeprivationCode string `yaml:"deprivation_code" mapstructure:"deprivation_code"`
	IMDScore        string `yaml:"imd_score" mapstructure:"imd_score"`
	Income          string `yaml:"income" mapstructure:"income"`
	Employment      string `yaml:"employment" mapstructure:"employment"`
	Education       string `yaml:"education" mapstructure:"education"`
	Health          string `yaml:"health" mapstructure:"health"`
	Crime           string `yaml:"crime" mapstructure:"crime"`

	PopulationCode  string `yaml:"population_code" mapstructure:"population_code"`
	PopulationTotal string `yaml:"population_total" mapstructure:"population_total"`

	VenueName string `yaml:"venue_name" mapstructure:"venue_name"`
	VenueType string `yaml:"venue_type" mapstructure:"venue_type"`
	VenueLat  string `yaml:"venue_lat" mapstructure:"venue_lat"`
	VenueLng  string `yaml:"venue_lng" mapstructure:"venue_lng"`
}

// OutputConfig configures where the merged dataset is written and read.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the merged dataset backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // csv or sqlite
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FetchConfig configures raw data downloads.
type FetchConfig struct {
	URLs        []string `yaml:"urls" mapstructure:"urls"`
	TempDir     string   `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CacheEntries    int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSeconds int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// DashboardConfig configures map and view defaults.
type DashboardConfig struct {
	Title         string   `yaml:"title" mapstructure:"title"`
	CenterLat     float64  `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng     float64  `yaml:"center_lng" mapstructure:"center_lng"`
	Zoom          int      `yaml:"zoom" mapstructure:"zoom"`
	DefaultCrimes []string `yaml:"default_crimes" mapstructure:"default_crimes"`
	TopN          int      `yaml:"top_n" mapstructure:"top_n"`
	ExportName    string   `yaml:"export_name" mapstructure:"export_name"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRIMEATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("data.raw_dir", "raw_data")
	v.SetDefault("data.incidents", []string{"raw_data/crime"})
	v.SetDefault("data.boundaries", "raw_data/Lower_Layer_Super_Output_Areas_2021_(Precise).geojson")
	v.SetDefault("data.deprivation", "raw_data/imd_scores.csv")
	v.SetDefault("data.population", "raw_data/lsoa_population_2022.csv")
	v.SetDefault("data.venues", "raw_data/bristol_pubs_restaurants.csv")
	v.SetDefault("data.region", "Bristol")
	v.SetDefault("data.venue_types", []string{"Pub/bar/nightclub", "Restaurant/Cafe/Canteen", "Takeaway/sandwich shop"})
	v.SetDefault("data.venue_encoding", "utf-8")
	v.SetDefault("data.columns.boundary_code", "LSOA21CD")
	v.SetDefault("data.columns.boundary_name", "LSOA21NM")
	v.SetDefault("data.columns.boundary_local_name", "LSOA21LN")
	v.SetDefault("data.columns.deprivation_code", "LSOA21CD")
	v.SetDefault("data.columns.imd_score", "IMDScore")
	v.SetDefault("data.columns.income", "Income")
	v.SetDefault("data.columns.employment", "Employment")
	v.SetDefault("data.columns.education", "EducationScore")
	v.SetDefault("data.columns.health", "HealthScore")
	v.SetDefault("data.columns.crime", "CrimeScore")
	v.SetDefault("data.columns.population_code", "LSOA21CD")
	v.SetDefault("data.columns.population_total", "POP2022Total")
	v.SetDefault("data.columns.venue_name", "BUSINESS_NAME")
	v.SetDefault("data.columns.venue_type", "BUSINESS_TYPE")
	v.SetDefault("data.columns.venue_lat", "Latitude")
	v.SetDefault("data.columns.venue_lng", "Longitude")

	v.SetDefault("output.dir", "data")
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.sqlite_path", "data/crime-atlas.db")

	v.SetDefault("fetch.temp_dir", "/tmp/crime-atlas")
	v.SetDefault("fetch.user_agent", "crime-atlas/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 10.0)
	v.SetDefault("fetch.concurrency", 4)

	v.SetDefault("server.port", 8501)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl_secs", 600)

	v.SetDefault("dashboard.title", "Spatial Analysis of Crime in Bristol")
	v.SetDefault("dashboard.center_lat", 51.4545)
	v.SetDefault("dashboard.center_lng", -2.5879)
	v.SetDefault("dashboard.zoom", 12)
	v.SetDefault("dashboard.default_crimes", []string{
		"Vehicle crime",
		"Criminal damage and arson",
		"Burglary",
		"Anti-social behaviour",
		"Other crime",
		"Violence and sexual offences",
	})
	v.SetDefault("dashboard.top_n", 10)
	v.SetDefault("dashboard.export_name", "bristol_crime_filtered")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
// Supported modes are "prepare", "serve" and "fetch".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "prepare":
		if len(c.Data.Incidents) == 0 {
			problems = append(problems, "data.incidents is required")
		}
		if c.Data.Boundaries == "" {
			problems = append(problems, "data.boundaries is required")
		}
		if c.Data.Deprivation == "" {
			problems = append(problems, "data.deprivation is required")
		}
		if c.Data.Columns.BoundaryCode == "" {
			problems = append(problems, "data.columns.boundary_code is required")
		}
		problems = append(problems, c.validateStore()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.CacheEntries < 0 {
			problems = append(problems, "server.cache_entries must not be negative")
		}
		if c.Data.Boundaries == "" {
			problems = append(problems, "data.boundaries is required")
		}
		problems = append(problems, c.validateStore()...)
	case "fetch":
		if len(c.Fetch.URLs) == 0 {
			problems = append(problems, "fetch.urls is required")
		}
		if c.Fetch.Concurrency < 1 {
			problems = append(problems, "fetch.concurrency must be at least 1")
		}
		if c.Fetch.MaxRetries < 0 {
			problems = append(problems, "fetch.max_retries must not be negative")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "csv":
		if c.Output.Dir == "" {
			return []string{"output.dir is required for the csv store"}
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite store"}
		}
	default:
		return []string{"store.driver must be csv or sqlite"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
