// Package config loads the client configuration.
//
// Values are layered: built-in defaults, then the YAML file, then a .env
// file, then CSC_* environment variables. The merged result is validated
// against an embedded CUE schema and finally checked for values the
// scheduler would refuse.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/polling"
)

//go:embed schema.cue
var schemaCUE string

// Backend names.
const (
	BackendS3       = "s3"
	BackendLocal    = "local"
	BackendDisabled = "disabled"
)

type Local struct {
	RootDir string `yaml:"root_dir" json:"root_dir"`
}

type S3 struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Bucket      string `yaml:"bucket" json:"bucket"`
	RootPrefix  string `yaml:"root_prefix" json:"root_prefix"`
	Region      string `yaml:"region" json:"region"`
	AccessKey   string `yaml:"access_key" json:"access_key"`
	SecretKey   string `yaml:"secret_key" json:"secret_key"`
	Secure      bool   `yaml:"secure" json:"secure"`
	ListRetries int    `yaml:"list_retries" json:"list_retries"`
}

type Polling struct {
	Enabled               bool   `yaml:"enabled" json:"enabled"`
	Interval              string `yaml:"interval" json:"interval"`
	TimeOfDayUTC          string `yaml:"time_of_day_utc" json:"time_of_day_utc"`
	ExternalPropertiesKey string `yaml:"external_properties_key" json:"external_properties_key"`
	ExternalRefresh       string `yaml:"external_refresh" json:"external_refresh"`
}

type Journal struct {
	Path string `yaml:"path" json:"path"`
}

// Config is the client configuration.
type Config struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	Environment      string  `yaml:"environment" json:"environment"`
	Backend          string  `yaml:"backend" json:"backend"`
	Local            Local   `yaml:"local" json:"local"`
	S3               S3      `yaml:"s3" json:"s3"`
	Polling          Polling `yaml:"polling" json:"polling"`
	Journal          Journal `yaml:"journal" json:"journal"`
	FetchConcurrency int     `yaml:"fetch_concurrency" json:"fetch_concurrency"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Enabled:     true,
		Environment: string(model.EnvProd),
		Backend:     BackendLocal,
		Local:       Local{RootDir: "."},
		S3:          S3{Secure: true, ListRetries: 3},
		Polling: Polling{
			Enabled:         true,
			Interval:        "PT5M",
			TimeOfDayUTC:    "02:00:00",
			ExternalRefresh: "PT5M",
		},
		FetchConcurrency: 8,
	}
}

// ValidationError reports a configuration value that was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

type options struct {
	envFile string
	lookup  func(string) (string, bool)
}

// Option configures Load.
type Option func(*options)

// WithEnvFile reads overrides from a .env file. A missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) { o.lookup = lookup }
}

// Load builds the configuration from path (optional) and the
// environment, then validates it.
func Load(path string, opts ...Option) (*Config, error) {
	o := options{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if o.envFile != "" {
		m, err := godotenv.Read(o.envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", o.envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := o.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CSC_ENVIRONMENT":             &cfg.Environment,
		"CSC_BACKEND":                 &cfg.Backend,
		"CSC_LOCAL_ROOT_DIR":          &cfg.Local.RootDir,
		"CSC_S3_ENDPOINT":             &cfg.S3.Endpoint,
		"CSC_S3_BUCKET":               &cfg.S3.Bucket,
		"CSC_S3_ROOT_PREFIX":          &cfg.S3.RootPrefix,
		"CSC_S3_REGION":               &cfg.S3.Region,
		"CSC_S3_ACCESS_KEY":           &cfg.S3.AccessKey,
		"CSC_S3_SECRET_KEY":           &cfg.S3.SecretKey,
		"CSC_POLLING_INTERVAL":        &cfg.Polling.Interval,
		"CSC_POLLING_TIME_OF_DAY_UTC": &cfg.Polling.TimeOfDayUTC,
		"CSC_POLLING_EXTERNAL_KEY":    &cfg.Polling.ExternalPropertiesKey,
		"CSC_JOURNAL_PATH":            &cfg.Journal.Path,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"CSC_ENABLED":         &cfg.Enabled,
		"CSC_S3_SECURE":       &cfg.S3.Secure,
		"CSC_POLLING_ENABLED": &cfg.Polling.Enabled,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ValidationError{Field: key, Message: fmt.Sprintf("%q is not a boolean", v)}
		}
		*dst = b
	}

	if v, ok := lookup("CSC_FETCH_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: "CSC_FETCH_CONCURRENCY", Message: fmt.Sprintf("%q is not a number", v)}
		}
		cfg.FetchConcurrency = n
	}
	return nil
}

// Validate checks cfg against the schema, then checks the polling values
// the scheduler accepts.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	if !c.Enabled || !c.Polling.Enabled {
		return nil
	}
	if c.Polling.Interval != "" {
		if _, err := c.PollingConfiguration(); err != nil {
			return err
		}
	}
	if _, err := polling.ParseDuration(c.Polling.ExternalRefresh); err != nil {
		return &ValidationError{Field: "polling.external_refresh", Message: err.Error()}
	}
	return nil
}

func (c *Config) validateSchema() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reports the first CUE error with the path it occurred at.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Field: "config", Message: err.Error()}
	}
	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = cue.MakePath(selectors(path)...).String()
	}
	format, args := first.Msg()
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func selectors(path []string) []cue.Selector {
	out := make([]cue.Selector, 0, len(path))
	for _, p := range path {
		if p == "#Config" {
			continue
		}
		out = append(out, cue.Str(p))
	}
	return out
}

// EntityEnvironment returns the configured environment.
func (c *Config) EntityEnvironment() model.Environment {
	env, err := model.ParseEnvironment(c.Environment)
	if err != nil {
		return model.EnvProd
	}
	return env
}

// PollingConfiguration returns the static polling configuration.
func (c *Config) PollingConfiguration() (model.PollingConfiguration, error) {
	interval, err := polling.ParseDuration(c.Polling.Interval)
	if err != nil {
		return model.PollingConfiguration{}, &ValidationError{Field: "polling.interval", Message: err.Error()}
	}
	if polling.IsInvalidDuration(interval) {
		return model.PollingConfiguration{}, &ValidationError{
			Field:   "polling.interval",
			Message: fmt.Sprintf("%s must lie between 2s and 24h and divide a day evenly", c.Polling.Interval),
		}
	}
	tod, err := model.ParseTimeOfDay(c.Polling.TimeOfDayUTC)
	if err != nil {
		return model.PollingConfiguration{}, &ValidationError{Field: "polling.time_of_day_utc", Message: err.Error()}
	}
	return model.PollingConfiguration{Interval: interval, TimeOfDay: tod}, nil
}

// ExternalRefresh returns the refresh period of the remote properties
// source.
func (c *Config) ExternalRefresh() time.Duration {
	d, err := polling.ParseDuration(c.Polling.ExternalRefresh)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
