package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Features   FeaturesConfig   `yaml:"features" mapstructure:"features"`
	Label      LabelConfig      `yaml:"label" mapstructure:"label"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourcesConfig locates the yearly accident source files.
type SourcesConfig struct {
	Dir         string   `yaml:"dir" mapstructure:"dir"`
	Templates   []string `yaml:"templates" mapstructure:"templates"`
	Year        int      `yaml:"year" mapstructure:"year"`
	Delimiter   string   `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding    string   `yaml:"encoding" mapstructure:"encoding"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// EnrichConfig configures the optional region aggregate join.
type EnrichConfig struct {
	// Path is a local .csv/.json/.xlsx file or an http(s) URL. Empty disables enrichment.
	Path         string `yaml:"path" mapstructure:"path"`
	RegionColumn string `yaml:"region_column" mapstructure:"region_column"`
}

// FeaturesConfig configures feature engineering.
type FeaturesConfig struct {
	VocabularyPath string  `yaml:"vocabulary_path" mapstructure:"vocabulary_path"`
	CellLevel      int     `yaml:"cell_level" mapstructure:"cell_level"`
	CenterLat      float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon      float64 `yaml:"center_lon" mapstructure:"center_lon"`
	UseCoordinates bool    `yaml:"use_coordinates" mapstructure:"use_coordinates"`
	UseEnrichment  bool    `yaml:"use_enrichment" mapstructure:"use_enrichment"`
	TopCauses      int     `yaml:"top_causes" mapstructure:"top_causes"`
}

// LabelConfig configures target construction.
type LabelConfig struct {
	InjurySubstring string `yaml:"injury_substring" mapstructure:"injury_substring"`
}

// ModelConfig configures training, split, and the boosted-tree classifier.
type ModelConfig struct {
	MinSamples     int     `yaml:"min_samples" mapstructure:"min_samples"`
	TestFraction   float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	Seed           uint64  `yaml:"seed" mapstructure:"seed"`
	NumTrees       int     `yaml:"num_trees" mapstructure:"num_trees"`
	MaxDepth       int     `yaml:"max_depth" mapstructure:"max_depth"`
	LearningRate   float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	MinChildWeight float64 `yaml:"min_child_weight" mapstructure:"min_child_weight"`
	Lambda         float64 `yaml:"lambda" mapstructure:"lambda"`
}

// OutputConfig configures the persisted artifacts and ranking.
type OutputConfig struct {
	Path         string  `yaml:"path" mapstructure:"path"`
	Delimiter    string  `yaml:"delimiter" mapstructure:"delimiter"`
	HotspotsPath string  `yaml:"hotspots_path" mapstructure:"hotspots_path"`
	TopK         int     `yaml:"top_k" mapstructure:"top_k"`
	SegmentKM    float64 `yaml:"segment_km" mapstructure:"segment_km"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the point-query server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// FetchConfig configures HTTP downloads of remote aggregate tables.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// MonitoringConfig configures run-health alerting while serving.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinAUC               float64 `yaml:"min_auc" mapstructure:"min_auc"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and the environment. A .env
// file in the working directory is loaded first; variables already set in
// the process win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROADRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.dir", "upload")
	v.SetDefault("sources.templates", []string{
		"acidentes{year}_todas_causas_tipos.csv",
		"datatran{year}.csv",
	})
	v.SetDefault("sources.year", 2023)
	v.SetDefault("sources.delimiter", ";")
	v.SetDefault("sources.encoding", "latin1")
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("enrich.region_column", "uf")
	v.SetDefault("features.cell_level", 13)
	v.SetDefault("features.center_lat", -14.235)
	v.SetDefault("features.center_lon", -51.925)
	v.SetDefault("features.use_coordinates", false)
	v.SetDefault("features.use_enrichment", false)
	v.SetDefault("features.top_causes", 10)
	v.SetDefault("label.injury_substring", "Com Vítimas")
	v.SetDefault("model.min_samples", 10)
	v.SetDefault("model.test_fraction", 0.3)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.num_trees", 100)
	v.SetDefault("model.max_depth", 6)
	v.SetDefault("model.learning_rate", 0.3)
	v.SetDefault("model.min_child_weight", 1.0)
	v.SetDefault("model.lambda", 1.0)
	v.SetDefault("output.path", "reports/predictions.tsv")
	v.SetDefault("output.delimiter", "\t")
	v.SetDefault("output.hotspots_path", "reports/hotspots.geojson")
	v.SetDefault("output.top_k", 10)
	v.SetDefault("output.segment_km", 10.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "roadrisk.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("fetch.user_agent", "roadrisk/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_auc", 0.6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings required by the given command mode
// ("run", "predict", "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "predict", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(c.Sources.Templates) == 0 {
		errs = append(errs, "sources.templates is required")
	}
	for _, tmpl := range c.Sources.Templates {
		if !strings.Contains(tmpl, "{year}") {
			errs = append(errs, "sources.templates entry "+tmpl+" must contain {year}")
		}
	}
	if c.Sources.Year <= 0 {
		errs = append(errs, "sources.year must be > 0")
	}
	if len([]rune(c.Sources.Delimiter)) != 1 {
		errs = append(errs, "sources.delimiter must be a single character")
	}
	if c.Label.InjurySubstring == "" {
		errs = append(errs, "label.injury_substring is required")
	}
	if c.Model.MinSamples < 1 {
		errs = append(errs, "model.min_samples must be >= 1")
	}
	if c.Model.TestFraction <= 0 || c.Model.TestFraction >= 1 {
		errs = append(errs, "model.test_fraction must be between 0 and 1 (exclusive)")
	}
	if c.Model.NumTrees < 1 {
		errs = append(errs, "model.num_trees must be >= 1")
	}
	if c.Model.MaxDepth < 1 {
		errs = append(errs, "model.max_depth must be >= 1")
	}
	if c.Model.LearningRate <= 0 || c.Model.LearningRate > 1 {
		errs = append(errs, "model.learning_rate must be in (0, 1]")
	}
	if c.Features.CellLevel < 0 || c.Features.CellLevel > 30 {
		errs = append(errs, "features.cell_level must be between 0 and 30")
	}

	if mode == "run" {
		if c.Output.Path == "" {
			errs = append(errs, "output.path is required")
		}
		if len([]rune(c.Output.Delimiter)) != 1 {
			errs = append(errs, "output.delimiter must be a single character")
		}
		if c.Output.TopK < 1 {
			errs = append(errs, "output.top_k must be >= 1")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
