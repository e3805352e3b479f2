// Package config loads the application configuration from a YAML file,
// RETAIN_-prefixed environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/remote"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels: RETAIN_REMOTE__BASE_URL sets remote.base_url.
const EnvPrefix = "RETAIN_"

// Config is the full application configuration.
type Config struct {
	LearnerID string `koanf:"learner_id" validate:"required"`
	DBPath    string `koanf:"db_path"`
	LogLevel  string `koanf:"log_level" validate:"oneof=trace debug info warn error"`

	Scheduler SchedulerConfig `koanf:"scheduler"`
	Remote    RemoteConfig    `koanf:"remote"`
	Study     StudyConfig     `koanf:"study"`
}

// SchedulerConfig tunes the local scheduler.
type SchedulerConfig struct {
	DesiredRetention    float64         `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaximumIntervalDays int             `koanf:"maximum_interval_days" validate:"gte=1"`
	LearningSteps       []time.Duration `koanf:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps     []time.Duration `koanf:"relearning_steps" validate:"dive,gt=0"`
}

// RemoteConfig configures the authoritative scheduling service client.
// An empty base URL runs the application fully offline.
type RemoteConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=1"`
}

// StudyConfig bounds one study session.
type StudyConfig struct {
	MaxCards int `koanf:"max_cards" validate:"gte=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := fsrs.DefaultParams()
	r := remote.DefaultConfig()
	return Config{
		LearnerID: "default",
		LogLevel:  "warn",
		Scheduler: SchedulerConfig{
			DesiredRetention:    p.DesiredRetention,
			MaximumIntervalDays: p.MaximumInterval,
			LearningSteps:       p.LearningSteps,
			RelearningSteps:     p.RelearningSteps,
		},
		Remote: RemoteConfig{
			Timeout:     r.Timeout,
			MaxAttempts: r.Retry.MaxAttempts,
		},
		Study: StudyConfig{MaxCards: 20},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then environment
// variables, then the given flag set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		// Only flags the user actually set override lower layers. The flag
		// --remote.base-url maps to the key remote.base_url.
		cb := func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, cb), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Config{}, fmt.Errorf("invalid config: field %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps RETAIN_REMOTE__BASE_URL to remote.base_url.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// SchedulerParams converts the scheduler section into engine parameters.
func (c Config) SchedulerParams() fsrs.Params {
	p := fsrs.DefaultParams()
	p.DesiredRetention = c.Scheduler.DesiredRetention
	p.MaximumInterval = c.Scheduler.MaximumIntervalDays
	p.LearningSteps = c.Scheduler.LearningSteps
	p.RelearningSteps = c.Scheduler.RelearningSteps
	return p
}

// RemoteClientConfig converts the remote section into client configuration.
func (c Config) RemoteClientConfig() remote.Config {
	rc := remote.DefaultConfig()
	rc.BaseURL = c.Remote.BaseURL
	rc.Timeout = c.Remote.Timeout
	rc.Retry.MaxAttempts = c.Remote.MaxAttempts
	return rc
}

// RemoteEnabled reports whether a remote scheduler is configured.
func (c Config) RemoteEnabled() bool {
	return c.Remote.BaseURL != ""
}
