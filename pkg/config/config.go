package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptatlas/promptatlas/pkg/logging"
)

// Duration wraps time.Duration so YAML values can be written in the
// usual "30s" / "500ms" form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration, loaded from YAML with
// environment overrides applied on top.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Search struct {
		APIKey     string `yaml:"api_key"`
		EngineID   string `yaml:"engine_id"`
		Endpoint   string `yaml:"endpoint"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"search"`

	Collector struct {
		Entities        []string `yaml:"entities"`
		BatchSize       int      `yaml:"batch_size"`
		MaxRetries      int      `yaml:"max_retries"`
		FetchTimeout    Duration `yaml:"fetch_timeout"`
		BackoffBase     Duration `yaml:"backoff_base"`
		SourceDelay     Duration `yaml:"source_delay"`
		BatchDelay      Duration `yaml:"batch_delay"`
		MinContentItems int      `yaml:"min_content_items"`
		RespectRobots   bool     `yaml:"respect_robots"`
		RequestsPerHost float64  `yaml:"requests_per_host"` // sustained requests/sec per host
		UserAgent       string   `yaml:"user_agent"`
		Referer         string   `yaml:"referer"`
	} `yaml:"collector"`

	Logging logging.LogConfig `yaml:"logging"`
}

// LoadConfig reads configuration from path, falling back to default
// locations and built-in defaults when no file is found.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"promptatlas.yaml",
			"config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/promptatlas/config.yaml"),
			"/etc/promptatlas/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Search.Endpoint == "" {
		config.Search.Endpoint = "https://www.googleapis.com/customsearch/v1"
	}
	if config.Search.MaxResults == 0 {
		config.Search.MaxResults = 5
	}

	if config.Collector.BatchSize == 0 {
		config.Collector.BatchSize = 3
	}
	if config.Collector.MaxRetries == 0 {
		config.Collector.MaxRetries = 3
	}
	if config.Collector.FetchTimeout == 0 {
		config.Collector.FetchTimeout = Duration(30 * time.Second)
	}
	if config.Collector.BackoffBase == 0 {
		config.Collector.BackoffBase = Duration(time.Second)
	}
	if config.Collector.SourceDelay == 0 {
		config.Collector.SourceDelay = Duration(2 * time.Second)
	}
	if config.Collector.BatchDelay == 0 {
		config.Collector.BatchDelay = Duration(time.Second)
	}
	if config.Collector.MinContentItems == 0 {
		config.Collector.MinContentItems = 1
	}
	if config.Collector.RequestsPerHost == 0 {
		config.Collector.RequestsPerHost = 0.5
	}
	if config.Collector.UserAgent == "" {
		config.Collector.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if config.Collector.Referer == "" {
		config.Collector.Referer = "https://www.google.com/"
	}

	if config.Logging.Level == "" {
		defaults := logging.DefaultLogConfig()
		config.Logging.Level = defaults.Level
		config.Logging.Format = defaults.Format
		config.Logging.Console = defaults.Console
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("ATLAS_SEARCH_API_KEY"); key != "" {
		config.Search.APIKey = key
	}
	if engine := os.Getenv("ATLAS_SEARCH_ENGINE_ID"); engine != "" {
		config.Search.EngineID = engine
	}
	if addr := os.Getenv("ATLAS_SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
}
