// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/cortex/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete cortex configuration. The first five sections are
// the settings panel; Backend and Log configure the service itself.
type Config struct {
	General  GeneralConfig  `toml:"general" json:"general" yaml:"general"`
	Privacy  PrivacyConfig  `toml:"privacy" json:"privacy" yaml:"privacy"`
	Models   ModelsConfig   `toml:"models" json:"models" yaml:"models"`
	APIKeys  APIKeysConfig  `toml:"api_keys" json:"api_keys" yaml:"api_keys"`
	Advanced AdvancedConfig `toml:"advanced" json:"advanced" yaml:"advanced"`
	Backend  BackendConfig  `toml:"backend" json:"backend" yaml:"backend"`
	Log      LogConfig      `toml:"log" json:"log" yaml:"log"`
}

// GeneralConfig holds appearance and default model settings.
type GeneralConfig struct {
	// Theme is light, dark or auto
	Theme string `toml:"theme" json:"theme" yaml:"theme"`

	// Language is a BCP 47 tag such as "en" or "pt-BR"
	Language string `toml:"language" json:"language" yaml:"language"`

	DefaultModel string `toml:"default_model" json:"default_model" yaml:"default_model"`
}

// PrivacyConfig holds data handling switches.
type PrivacyConfig struct {
	// LocalMode keeps every request on this machine
	LocalMode      bool `toml:"local_mode" json:"local_mode" yaml:"local_mode"`
	Telemetry      bool `toml:"telemetry" json:"telemetry" yaml:"telemetry"`
	CrashReporting bool `toml:"crash_reporting" json:"crash_reporting" yaml:"crash_reporting"`
}

// ModelsConfig holds model download settings.
type ModelsConfig struct {
	AutoDownloadUpdates    bool   `toml:"auto_download_updates" json:"auto_download_updates" yaml:"auto_download_updates"`
	DownloadPath           string `toml:"download_path" json:"download_path" yaml:"download_path"`
	MaxConcurrentDownloads int    `toml:"max_concurrent_downloads" json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
}

// APIKeysConfig holds per-provider API keys.
type APIKeysConfig struct {
	OpenAI    string `toml:"openai" json:"openai" yaml:"openai"`
	Anthropic string `toml:"anthropic" json:"anthropic" yaml:"anthropic"`
	Google    string `toml:"google" json:"google" yaml:"google"`
	Groq      string `toml:"groq" json:"groq" yaml:"groq"`
}

// AdvancedConfig holds the local API server and generation settings.
type AdvancedConfig struct {
	ServerPort  int     `toml:"server_port" json:"server_port" yaml:"server_port"`
	EnableAPI   bool    `toml:"enable_api" json:"enable_api" yaml:"enable_api"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `toml:"temperature" json:"temperature" yaml:"temperature"`
}

// BackendConfig configures where replies and titles come from.
type BackendConfig struct {
	// URL of the local chat backend
	URL string `toml:"url" json:"url" yaml:"url"`

	// TimeoutSecs bounds every backend call
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`

	// Fallback is "canned" (degraded replies) or "error" (error message)
	Fallback string `toml:"fallback" json:"fallback" yaml:"fallback"`

	// MockDelayMs is the simulated latency of canned replies
	MockDelayMs int `toml:"mock_delay_ms" json:"mock_delay_ms" yaml:"mock_delay_ms"`

	// GeminiModel is used when local mode is off and a Google key is set
	GeminiModel string `toml:"gemini_model" json:"gemini_model" yaml:"gemini_model"`

	BreakerFailures    int `toml:"breaker_failures" json:"breaker_failures" yaml:"breaker_failures"`
	BreakerTimeoutSecs int `toml:"breaker_timeout_secs" json:"breaker_timeout_secs" yaml:"breaker_timeout_secs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// RedactedValue replaces API keys in redacted output.
const RedactedValue = "[REDACTED]"

// Fallback modes.
const (
	FallbackCanned = "canned"
	FallbackError  = "error"
)

// Default returns a new Config with the factory settings.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			Theme:        string(ThemeLight),
			Language:     "en",
			DefaultModel: "cortex-v1",
		},
		Privacy: PrivacyConfig{
			LocalMode: true,
		},
		Models: ModelsConfig{
			DownloadPath:           defaultDownloadPath(),
			MaxConcurrentDownloads: 2,
		},
		Advanced: AdvancedConfig{
			ServerPort:  1337,
			EnableAPI:   true,
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Backend: BackendConfig{
			URL:                "http://localhost:8000",
			TimeoutSecs:        30,
			Fallback:           FallbackCanned,
			MockDelayMs:        1000,
			GeminiModel:        "gemini-2.0-flash",
			BreakerFailures:    3,
			BreakerTimeoutSecs: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDownloadPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Cortex", "models")
	}
	return filepath.Join(home, "Cortex", "models")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the cortex configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".cortex"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.cortex/config.toml, then config.json, falling back to
// defaults. It returns the path that was read ("" for defaults).
// Environment overrides are applied last.
func Load() (*Config, string, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, "", nil
}

// LoadFromPath loads a .toml, .json, .yaml or .yml file, applies environment
// overrides and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := decode(cfg, path, data); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	fillDefaults(cfg)

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML: %w", err)
		}
	}
	return nil
}

// fillDefaults fills in missing values. Booleans are left as written since
// false is a legitimate setting.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.General.Theme == "" {
		cfg.General.Theme = d.General.Theme
	}
	if cfg.General.Language == "" {
		cfg.General.Language = d.General.Language
	}
	if cfg.General.DefaultModel == "" {
		cfg.General.DefaultModel = d.General.DefaultModel
	}

	if cfg.Models.DownloadPath == "" {
		cfg.Models.DownloadPath = d.Models.DownloadPath
	}
	if cfg.Models.MaxConcurrentDownloads == 0 {
		cfg.Models.MaxConcurrentDownloads = d.Models.MaxConcurrentDownloads
	}

	if cfg.Advanced.ServerPort == 0 {
		cfg.Advanced.ServerPort = d.Advanced.ServerPort
	}
	if cfg.Advanced.MaxTokens == 0 {
		cfg.Advanced.MaxTokens = d.Advanced.MaxTokens
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = d.Backend.URL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if cfg.Backend.Fallback == "" {
		cfg.Backend.Fallback = d.Backend.Fallback
	}
	if cfg.Backend.GeminiModel == "" {
		cfg.Backend.GeminiModel = d.Backend.GeminiModel
	}
	if cfg.Backend.BreakerFailures == 0 {
		cfg.Backend.BreakerFailures = d.Backend.BreakerFailures
	}
	if cfg.Backend.BreakerTimeoutSecs == 0 {
		cfg.Backend.BreakerTimeoutSecs = d.Backend.BreakerTimeoutSecs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# cortex configuration file\n")
	b.WriteString("# Generated by cortex - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfigFile(path, []byte(b.String()))
}

// SaveJSON writes the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfigFile(path, data)
}

// Save writes cfg in the format implied by the path extension.
func Save(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(cfg, path)
	case ".yaml", ".yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return writeConfigFile(path, data)
	default:
		return SaveTOML(cfg, path)
	}
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err carries validation failures.
func IsValidationError(err error) bool {
	var verrs ValidateErrors
	return errors.As(err, &verrs)
}

// Validate validates the configuration and returns ValidateErrors if
// anything is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// General
	if _, err := ParseTheme(c.General.Theme); err != nil {
		add("general.theme", "invalid theme '%s', must be one of: light, dark, auto", c.General.Theme)
	}
	if _, err := language.Parse(c.General.Language); err != nil {
		add("general.language", "invalid language tag '%s'", c.General.Language)
	}
	if strings.TrimSpace(c.General.DefaultModel) == "" {
		add("general.default_model", "must not be empty")
	}

	// Models
	if c.Models.MaxConcurrentDownloads < 1 || c.Models.MaxConcurrentDownloads > 4 {
		add("models.max_concurrent_downloads", "must be between 1 and 4, got %d", c.Models.MaxConcurrentDownloads)
	}
	if strings.TrimSpace(c.Models.DownloadPath) == "" {
		add("models.download_path", "must not be empty")
	}

	// Advanced
	if c.Advanced.ServerPort < 1 || c.Advanced.ServerPort > 65535 {
		add("advanced.server_port", "must be between 1 and 65535, got %d", c.Advanced.ServerPort)
	}
	if c.Advanced.MaxTokens < 1 {
		add("advanced.max_tokens", "must be positive, got %d", c.Advanced.MaxTokens)
	}
	if c.Advanced.Temperature < 0 || c.Advanced.Temperature > 2 {
		add("advanced.temperature", "must be between 0 and 2, got %g", c.Advanced.Temperature)
	}

	// Backend
	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("backend.url", "invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		add("backend.timeout_secs", "must be between 1 and 600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.Fallback != FallbackCanned && c.Backend.Fallback != FallbackError {
		add("backend.fallback", "invalid fallback '%s', must be one of: canned, error", c.Backend.Fallback)
	}
	if c.Backend.MockDelayMs < 0 {
		add("backend.mock_delay_ms", "must not be negative, got %d", c.Backend.MockDelayMs)
	}
	if c.Backend.BreakerFailures < 1 {
		add("backend.breaker_failures", "must be positive, got %d", c.Backend.BreakerFailures)
	}
	if c.Backend.BreakerTimeoutSecs < 1 {
		add("backend.breaker_timeout_secs", "must be positive, got %d", c.Backend.BreakerTimeoutSecs)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		add("log.format", "invalid format '%s', must be one of: json, console", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CORTEX_BACKEND_URL: overrides backend.url
//   - CORTEX_GOOGLE_API_KEY: overrides api_keys.google
//   - CORTEX_SERVER_PORT: overrides advanced.server_port
//   - CORTEX_LOG_LEVEL: overrides log.level
//   - CORTEX_LOCAL_MODE: "1" or "true" enables local mode
//   - CORTEX_THEME: overrides general.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CORTEX_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("CORTEX_GOOGLE_API_KEY"); v != "" {
		c.APIKeys.Google = v
	}
	if v := os.Getenv("CORTEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Advanced.ServerPort = port
		}
	}
	if v := os.Getenv("CORTEX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CORTEX_LOCAL_MODE"); v != "" {
		c.Privacy.LocalMode = parseBool(v)
	}
	if v := os.Getenv("CORTEX_THEME"); v != "" {
		c.General.Theme = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation, e.g. "advanced.server_port".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using dot notation. String input is converted to the
// field's type. The config is not validated.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		name := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(n string) bool {
			return strings.EqualFold(n, name)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName turns snake_case or kebab-case into a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(strings.ToLower(p[1:]))
	}
	return b.String()
}

func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(s))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := strings.Split(section.Tag.Get("toml"), ",")[0]
		for j := 0; j < section.Type.NumField(); j++ {
			name := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, prefix+"."+name)
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with API keys masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, key := range safe.apiKeys() {
		if *key != "" {
			*key = RedactedValue
		}
	}
	return safe
}

// Unredact replaces every RedactedValue API key in c with the matching key
// from prev, so a redacted config read back from a client keeps its secrets.
func (c *Config) Unredact(prev *Config) {
	if prev == nil {
		return
	}
	old := prev.apiKeys()
	for i, key := range c.apiKeys() {
		if *key == RedactedValue {
			*key = *old[i]
		}
	}
}

func (c *Config) apiKeys() []*string {
	return []*string{&c.APIKeys.OpenAI, &c.APIKeys.Anthropic, &c.APIKeys.Google, &c.APIKeys.Groq}
}

// String returns the config as JSON with API keys redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
