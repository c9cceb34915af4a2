package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHostName   = "platform"
	DefaultIngestURL  = "https://sparkswarm.com/api/v1/metrics/ingest"
	DefaultSampleWait = 200 * time.Millisecond
	DefaultTimeout    = 20 * time.Second
	DefaultProcRoot   = "/proc"
	DefaultDiskPath   = "/"
	DefaultDockerBin  = "docker"
	DefaultLogLevel   = "info"

	// ConfigFileEnv names the optional YAML file when no --config flag is given.
	ConfigFileEnv = "METRICS_CONFIG_FILE"
)

var ErrMissingAPIKey = errors.New("SPARK_SWARM_API_KEY is required")

type Config struct {
	HostName               string        `yaml:"host_name"`
	APIKey                 string        `yaml:"api_key"`
	IngestURL              string        `yaml:"ingest_url"`
	SampleWait             time.Duration `yaml:"sample_wait"`
	Timeout                time.Duration `yaml:"timeout"`
	ProcRoot               string        `yaml:"proc_root"`
	DiskPath               string        `yaml:"disk_path"`
	DockerBin              string        `yaml:"docker_bin"`
	AllowInsecureLocalhost bool          `yaml:"allow_insecure_localhost"`
	LogLevel               string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		HostName:   DefaultHostName,
		IngestURL:  DefaultIngestURL,
		SampleWait: DefaultSampleWait,
		Timeout:    DefaultTimeout,
		ProcRoot:   DefaultProcRoot,
		DiskPath:   DefaultDiskPath,
		DockerBin:  DefaultDockerBin,
		LogLevel:   DefaultLogLevel,
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if
// path is non-empty), then environment values returned by getenv. It does not
// validate; callers that send data must call Validate.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(getenv(ConfigFileEnv))
	}
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	e := envReader{getenv: getenv}
	cfg.HostName = e.str("METRICS_HOST_NAME", cfg.HostName)
	cfg.APIKey = e.str("SPARK_SWARM_API_KEY", cfg.APIKey)
	cfg.IngestURL = e.str("METRICS_INGEST_URL", cfg.IngestURL)
	cfg.SampleWait = e.duration("METRICS_SAMPLE_WAIT", cfg.SampleWait)
	cfg.Timeout = e.duration("METRICS_TIMEOUT", cfg.Timeout)
	cfg.ProcRoot = e.str("METRICS_PROC_ROOT", cfg.ProcRoot)
	cfg.DiskPath = e.str("METRICS_DISK_PATH", cfg.DiskPath)
	cfg.DockerBin = e.str("METRICS_DOCKER_BIN", cfg.DockerBin)
	cfg.AllowInsecureLocalhost = e.boolean("METRICS_ALLOW_INSECURE_LOCALHOST", cfg.AllowInsecureLocalhost)
	cfg.LogLevel = strings.ToLower(e.str("METRICS_LOG_LEVEL", cfg.LogLevel))

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.IngestURL = strings.TrimSpace(cfg.IngestURL)
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.IngestURL == "" {
		return errors.New("METRICS_INGEST_URL must not be empty")
	}
	if _, err := url.Parse(c.IngestURL); err != nil {
		return fmt.Errorf("invalid METRICS_INGEST_URL: %w", err)
	}
	if c.SampleWait < 0 {
		return errors.New("METRICS_SAMPLE_WAIT must be >= 0")
	}
	if c.Timeout <= 0 {
		return errors.New("METRICS_TIMEOUT must be > 0")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, fallback string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func (e envReader) boolean(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(e.getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func (e envReader) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
