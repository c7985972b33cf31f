// Package settings loads chunkup's configuration.
//
// Values come from, in increasing priority: defaults, the YAML config file,
// CHUNKUP_* environment variables and command-line flags.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wandb/chunkup/internal/chunkupload"
)

const (
	// EnvPrefix prefixes environment variables, as in CHUNKUP_CHUNK_SIZE.
	EnvPrefix = "CHUNKUP"

	// ConfigName is the default config file's name in the home directory.
	ConfigName = ".chunkup"
)

type S3Settings struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type Settings struct {
	// Target is a URL template for uploaded files.
	Target string `mapstructure:"target"`

	// SignEndpoint is queried for upload URLs instead of Target.
	SignEndpoint string `mapstructure:"sign_endpoint"`

	ChunkSize          int64 `mapstructure:"chunk_size"`
	ChunkUploadRetries int   `mapstructure:"chunk_upload_retries"`

	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// HTTPRetryMax is the number of retries by the HTTP client itself,
	// in addition to the per-chunk retries.
	HTTPRetryMax int `mapstructure:"http_retry_max"`

	S3 S3Settings `mapstructure:"s3"`

	LogLevel  string `mapstructure:"log_level"`
	SentryDSN string `mapstructure:"sentry_dsn"`

	// MetricsAddr is the address of the Prometheus endpoint, if any.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Output is the format of the run summary: "json" or "yaml".
	Output string `mapstructure:"output"`

	// ProgressInterval is the minimum time between progress log lines.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// keys are all setting keys.
var keys = []string{
	"target",
	"sign_endpoint",
	"chunk_size",
	"chunk_upload_retries",
	"http_timeout",
	"http_retry_max",
	"s3.region",
	"s3.endpoint",
	"s3.path_style",
	"log_level",
	"sentry_dsn",
	"metrics_addr",
	"output",
	"progress_interval",
}

// flagKeys maps flag names to setting keys.
var flagKeys = map[string]string{
	"target":               "target",
	"sign-endpoint":        "sign_endpoint",
	"chunk-size":           "chunk_size",
	"chunk-upload-retries": "chunk_upload_retries",
	"http-timeout":         "http_timeout",
	"http-retry-max":       "http_retry_max",
	"s3-region":            "s3.region",
	"s3-endpoint":          "s3.endpoint",
	"s3-path-style":        "s3.path_style",
	"log-level":            "log_level",
	"metrics-addr":         "metrics_addr",
	"output":               "output",
	"progress-interval":    "progress_interval",
}

// AddFlags defines the command-line flags for settings.
func AddFlags(flags *pflag.FlagSet) {
	flags.String("target", "", "Upload URL template, e.g. 's3://bucket/{{.Name}}'")
	flags.String("sign-endpoint", "", "Endpoint returning signed upload URLs")
	flags.Int64("chunk-size", chunkupload.DefaultChunkSize, "Chunk size in bytes")
	flags.Int("chunk-upload-retries", chunkupload.DefaultChunkUploadRetries, "Attempts per chunk")
	flags.Duration("http-timeout", 5*time.Minute, "Timeout of each HTTP request")
	flags.Int("http-retry-max", 0, "Retries of each HTTP request by the HTTP client")
	flags.String("s3-region", "", "AWS region")
	flags.String("s3-endpoint", "", "Custom S3 endpoint for S3-compatible stores")
	flags.Bool("s3-path-style", false, "Use path-style S3 addressing")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. ':9090'")
	flags.StringP("output", "o", "json", "Summary format: json or yaml")
	flags.Duration("progress-interval", 2*time.Second, "Minimum time between progress logs")
}

// BindFlags makes flags override the other sources.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chunk_size", chunkupload.DefaultChunkSize)
	v.SetDefault("chunk_upload_retries", chunkupload.DefaultChunkUploadRetries)
	v.SetDefault("http_timeout", 5*time.Minute)
	v.SetDefault("http_retry_max", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("output", "json")
	v.SetDefault("progress_interval", 2*time.Second)
}

type LoadParams struct {
	// Viper holds the flag bindings. A new instance is used if nil.
	Viper *viper.Viper

	// Fs is the filesystem with the config file.
	Fs afero.Fs

	// ConfigFile is an explicit config file path.
	//
	// If empty, ~/.chunkup.yaml is read if it exists.
	ConfigFile string

	// Home overrides the home directory.
	Home string
}

// Load reads the settings.
func Load(params LoadParams) (*Settings, error) {
	v := params.Viper
	if v == nil {
		v = viper.New()
	}
	if params.Fs != nil {
		v.SetFs(params.Fs)
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		// Unmarshal only sees environment variables bound explicitly.
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("settings: %v", err)
		}
	}

	if err := readConfig(v, params); err != nil {
		return nil, err
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("settings: %v", err)
	}

	s.normalize()
	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func readConfig(v *viper.Viper, params LoadParams) error {
	if params.ConfigFile != "" {
		v.SetConfigFile(params.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("settings: reading %s: %v", params.ConfigFile, err)
		}
		return nil
	}

	home := params.Home
	if home == "" {
		var err error
		home, err = homedir.Dir()
		if err != nil {
			return fmt.Errorf("settings: finding home directory: %v", err)
		}
	}

	v.AddConfigPath(filepath.Clean(home))
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("settings: %v", err)
	}
	return nil
}

// normalize replaces invalid numeric settings by their defaults.
func (s *Settings) normalize() {
	if s.ChunkSize <= 0 {
		s.ChunkSize = chunkupload.DefaultChunkSize
	}
	if s.ChunkUploadRetries <= 0 {
		s.ChunkUploadRetries = chunkupload.DefaultChunkUploadRetries
	}
	if s.HTTPRetryMax < 0 {
		s.HTTPRetryMax = 0
	}
	if s.HTTPTimeout < 0 {
		s.HTTPTimeout = 0
	}
	if s.ProgressInterval <= 0 {
		s.ProgressInterval = 2 * time.Second
	}
	s.Output = strings.ToLower(s.Output)
}

func (s *Settings) validate() error {
	if s.Target == "" && s.SignEndpoint == "" {
		return errors.New("settings: one of target or sign_endpoint is required")
	}

	switch s.Output {
	case "json", "yaml":
	default:
		return fmt.Errorf("settings: invalid output format %q", s.Output)
	}

	if _, err := s.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses LogLevel.
func (s *Settings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("settings: invalid log level %q", s.LogLevel)
	}
	return level, nil
}
