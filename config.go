// FILE: config.go
package log

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/lixenwraith/config"
)

// Config governs the dispatcher and queue, plus the default formatting
// templates new sinks inherit unless they override them directly.
// Per-sink settings (rotation policy, UDP target, filters) are
// configured on the sink's own constructor, not here.
type Config struct {
	// Queue and dispatch
	QueueCapacity int64  `toml:"queue_capacity"` // generation channel size
	DrainMode     string `toml:"drain_mode"`     // "ordered" or "unordered"
	Level         string `toml:"level"`          // LOG_FATAL .. LOG_ALL

	// Consumer loop tuning
	EmptyDrainSleepMs     int64 `toml:"empty_drain_sleep_ms"`
	ExpiredSweepThreshold int64 `toml:"expired_sweep_threshold"`
	ShutdownPollMs        int64 `toml:"shutdown_poll_ms"`

	// Default formatting, inherited by sinks unless constructed with
	// their own templates
	LineTemplate string `toml:"line_template"`
	DateTemplate string `toml:"date_template"`

	// Internal diagnostics
	InternalDiagnosticsToStderr bool `toml:"internal_diagnostics_to_stderr"`
}

var defaultConfig = Config{
	QueueCapacity:               4096,
	DrainMode:                   "ordered",
	Level:                       "LOG_ALL",
	EmptyDrainSleepMs:           1,
	ExpiredSweepThreshold:       4,
	ShutdownPollMs:              256,
	LineTemplate:                "[%t] [%s] %T: %m",
	DateTemplate:                "%Y-%m-%d %H:%M:%S.$",
	InternalDiagnosticsToStderr: true,
}

// DefaultConfig returns a copy of the built-in default configuration.
func DefaultConfig() *Config {
	cfg := defaultConfig
	return &cfg
}

// NewConfigFromFile loads configuration from a TOML file, falling back
// to defaults for anything the file omits, then validates the result.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()
	if err := loader.RegisterStruct("tagpipe.", *cfg); err != nil {
		return nil, fmt.Errorf("tagpipe: register config struct: %w", err)
	}
	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmt.Errorf("tagpipe: load config from %s: %w", path, err)
	}
	if err := extractConfig(loader, "tagpipe.", cfg); err != nil {
		return nil, fmt.Errorf("tagpipe: extract config values: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromDefaults builds a Config from defaults plus a map of
// toml-tag-keyed overrides, validating the result.
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("tagpipe: apply overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" {
			continue
		}
		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue
		}
		if err := setFieldValue(v.Field(i), val); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func applyOverrides(cfg *Config, overrides map[string]any) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	fieldMap := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("toml"); tag != "" {
			fieldMap[tag] = v.Field(i)
		}
	}

	for key, value := range overrides {
		fieldValue, ok := fieldMap[key]
		if !ok {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(s)
	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

// Validate rejects configurations that would leave the dispatcher or
// queue in an unusable state.
func (c *Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmtErrorf("queue_capacity must be positive: %d", c.QueueCapacity)
	}
	switch strings.ToLower(c.DrainMode) {
	case "ordered", "unordered":
	default:
		return fmtErrorf("invalid drain_mode: '%s' (use ordered or unordered)", c.DrainMode)
	}
	if c.EmptyDrainSleepMs < 0 {
		return fmtErrorf("empty_drain_sleep_ms cannot be negative: %d", c.EmptyDrainSleepMs)
	}
	if c.ExpiredSweepThreshold < 0 {
		return fmtErrorf("expired_sweep_threshold cannot be negative: %d", c.ExpiredSweepThreshold)
	}
	if c.ShutdownPollMs <= 0 {
		return fmtErrorf("shutdown_poll_ms must be positive: %d", c.ShutdownPollMs)
	}
	if strings.TrimSpace(c.LineTemplate) == "" {
		return fmtErrorf("line_template cannot be empty")
	}
	if strings.TrimSpace(c.DateTemplate) == "" {
		return fmtErrorf("date_template cannot be empty")
	}
	return nil
}

// Clone returns a deep copy (the struct has no reference fields, so a
// value copy already suffices).
func (c *Config) Clone() *Config {
	cfg := *c
	return &cfg
}

// drainMode resolves the configured DrainMode string to a DrainMode
// constant, defaulting to DrainOrdered on anything unrecognized —
// Validate should already have rejected that case.
func (c *Config) drainMode() DrainMode {
	if strings.ToLower(c.DrainMode) == "unordered" {
		return DrainUnordered
	}
	return DrainOrdered
}
