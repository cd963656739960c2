package streamcheck_config

import (
	"time"

	"github.com/NordCoder/streamcheck/internal/obs"
	pginfra "github.com/NordCoder/streamcheck/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Probe struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	VerifyTLS    bool          `mapstructure:"verify_tls"`
	Concurrency  int           `mapstructure:"concurrency"`
	Attempts     int           `mapstructure:"attempts"`
	RetryBase    time.Duration `mapstructure:"retry_base"`
}

type Source struct {
	Name     string `mapstructure:"name"`
	Location string `mapstructure:"location"`
}

type Link struct {
	Title string `mapstructure:"title"`
	URL   string `mapstructure:"url"`
}

type Report struct {
	Path       string `mapstructure:"path"`
	JSONPath   string `mapstructure:"json_path"`
	Timezone   string `mapstructure:"timezone"`
	Links      []Link `mapstructure:"links"`
	Disclaimer string `mapstructure:"disclaimer"`
}

type Schedule struct {
	Cron       string        `mapstructure:"cron"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DB struct {
	Enable         bool `mapstructure:"enable"`
	pginfra.Config `mapstructure:",squash"`
}

type Config struct {
	App      App      `mapstructure:"app"`
	Log      Log      `mapstructure:"log"`
	OTEL     OTEL     `mapstructure:"otel"`
	DB       DB       `mapstructure:"db"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Outbox   Outbox   `mapstructure:"outbox"`
	Probe    Probe    `mapstructure:"probe"`
	Sources  []Source `mapstructure:"sources"`
	Report   Report   `mapstructure:"report"`
	Schedule Schedule `mapstructure:"schedule"`
	Server   Server   `mapstructure:"server"`
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

func (c *Config) OTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		Version:     c.App.Version,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
