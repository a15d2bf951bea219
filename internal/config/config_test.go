// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// clearEnv unsets every CORTEX_* override for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CORTEX_BACKEND_URL", "CORTEX_GOOGLE_API_KEY", "CORTEX_SERVER_PORT",
		"CORTEX_LOG_LEVEL", "CORTEX_LOCAL_MODE", "CORTEX_THEME",
	} {
		t.Setenv(name, "")
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "light", cfg.General.Theme)
	assert.Equal(t, "en", cfg.General.Language)
	assert.Equal(t, "cortex-v1", cfg.General.DefaultModel)
	assert.True(t, cfg.Privacy.LocalMode)
	assert.False(t, cfg.Privacy.Telemetry)
	assert.Equal(t, 2, cfg.Models.MaxConcurrentDownloads)
	assert.True(t, strings.HasSuffix(cfg.Models.DownloadPath, filepath.Join("Cortex", "models")))
	assert.Equal(t, 1337, cfg.Advanced.ServerPort)
	assert.True(t, cfg.Advanced.EnableAPI)
	assert.Equal(t, 4096, cfg.Advanced.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Advanced.Temperature, 1e-9)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, FallbackCanned, cfg.Backend.Fallback)

	require.NoError(t, cfg.Validate())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad theme", func(c *Config) { c.General.Theme = "solarized" }, "general.theme"},
		{"bad language", func(c *Config) { c.General.Language = "not a tag!" }, "general.language"},
		{"empty model", func(c *Config) { c.General.DefaultModel = " " }, "general.default_model"},
		{"too many downloads", func(c *Config) { c.Models.MaxConcurrentDownloads = 5 }, "models.max_concurrent_downloads"},
		{"zero downloads", func(c *Config) { c.Models.MaxConcurrentDownloads = 0 }, "models.max_concurrent_downloads"},
		{"port out of range", func(c *Config) { c.Advanced.ServerPort = 70000 }, "advanced.server_port"},
		{"temperature high", func(c *Config) { c.Advanced.Temperature = 2.5 }, "advanced.temperature"},
		{"temperature negative", func(c *Config) { c.Advanced.Temperature = -0.1 }, "advanced.temperature"},
		{"no max tokens", func(c *Config) { c.Advanced.MaxTokens = 0 }, "advanced.max_tokens"},
		{"backend scheme", func(c *Config) { c.Backend.URL = "ftp://localhost" }, "backend.url"},
		{"fallback mode", func(c *Config) { c.Backend.Fallback = "retry" }, "backend.fallback"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidate_AcceptsBoundaries(t *testing.T) {
	cfg := Default()
	cfg.General.Theme = "auto"
	cfg.General.Language = "pt-BR"
	cfg.Models.MaxConcurrentDownloads = 4
	cfg.Advanced.Temperature = 2
	cfg.Backend.Fallback = FallbackError
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestSaveAndLoad_AllFormats(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.General.Theme = "dark"
			cfg.APIKeys.Google = "key-123"
			cfg.Advanced.Temperature = 1.2

			path := filepath.Join(dir, name)
			require.NoError(t, Save(cfg, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			if os.PathSeparator == '/' {
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			}

			loaded, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadFromPath_FillsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general]\ntheme = \"auto\"\n"), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.General.Theme)
	assert.Equal(t, "en", cfg.General.Language)
	assert.Equal(t, 1337, cfg.Advanced.ServerPort)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFromPath(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = LoadFromPath(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("advanced:\n  temperature: 9\n"), 0o600))
	_, err = LoadFromPath(invalid)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLoad_UsesHomeDirectory(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg, path, err := Load()
	require.NoError(t, err)
	assert.Empty(t, path, "no file means defaults")
	assert.Equal(t, Default().Backend, cfg.Backend)

	jsonPath := filepath.Join(home, ".cortex", "config.json")
	written := Default()
	written.General.Language = "fr"
	require.NoError(t, SaveJSON(written, jsonPath))

	cfg, path, err = Load()
	require.NoError(t, err)
	assert.Equal(t, jsonPath, path)
	assert.Equal(t, "fr", cfg.General.Language)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORTEX_BACKEND_URL", "http://127.0.0.1:9000")
	t.Setenv("CORTEX_GOOGLE_API_KEY", "g-key")
	t.Setenv("CORTEX_SERVER_PORT", "8080")
	t.Setenv("CORTEX_LOG_LEVEL", "debug")
	t.Setenv("CORTEX_LOCAL_MODE", "false")
	t.Setenv("CORTEX_THEME", "dark")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://127.0.0.1:9000", cfg.Backend.URL)
	assert.Equal(t, "g-key", cfg.APIKeys.Google)
	assert.Equal(t, 8080, cfg.Advanced.ServerPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Privacy.LocalMode)
	assert.Equal(t, "dark", cfg.General.Theme)
}

// =============================================================================
// GET / SET
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("advanced.server_port")
	require.NoError(t, err)
	assert.Equal(t, 1337, v)

	require.NoError(t, cfg.Set("advanced.server_port", "8081"))
	require.NoError(t, cfg.Set("privacy.local_mode", "false"))
	require.NoError(t, cfg.Set("advanced.temperature", "1.5"))
	require.NoError(t, cfg.Set("api_keys.openai", "sk-test"))

	assert.Equal(t, 8081, cfg.Advanced.ServerPort)
	assert.False(t, cfg.Privacy.LocalMode)
	assert.InDelta(t, 1.5, cfg.Advanced.Temperature, 1e-9)
	assert.Equal(t, "sk-test", cfg.APIKeys.OpenAI)

	_, err = cfg.Get("general")
	assert.Error(t, err)
	_, err = cfg.Get("general.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("advanced.max_tokens", "lots"))
	assert.Error(t, cfg.Set("", "x"))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "general.theme")
	assert.Contains(t, keys, "api_keys.groq")
	assert.Contains(t, keys, "backend.breaker_timeout_secs")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestString_RedactsKeys(t *testing.T) {
	cfg := Default()
	cfg.APIKeys.Anthropic = "secret-value"

	s := cfg.String()
	assert.NotContains(t, s, "secret-value")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "secret-value", cfg.APIKeys.Anthropic, "original untouched")
}

// =============================================================================
// THEME & SETTINGS
// =============================================================================

func TestResolveTheme(t *testing.T) {
	tests := []struct {
		theme string
		dark  bool
		want  Theme
	}{
		{"light", true, ThemeLight},
		{"dark", false, ThemeDark},
		{"auto", true, ThemeDark},
		{"auto", false, ThemeLight},
		{"AUTO", true, ThemeDark},
		{"garbage", true, ThemeLight},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveTheme(tt.theme, tt.dark), "%s/%v", tt.theme, tt.dark)
	}
}

func TestSettings_UpdateResetSubscribe(t *testing.T) {
	s := NewSettings(nil)

	var seen []string
	s.Subscribe(func(c *Config) { seen = append(seen, c.General.Theme) })

	next := s.Get()
	next.General.Theme = "dark"
	require.NoError(t, s.Update(next))
	assert.Equal(t, "dark", s.Get().General.Theme)

	bad := s.Get()
	bad.Advanced.Temperature = 3
	err := s.Update(bad)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "dark", s.Get().General.Theme, "rejected update leaves settings unchanged")

	s.Reset()
	assert.Equal(t, "light", s.Get().General.Theme)
	assert.Equal(t, []string{"dark", "light"}, seen)

	// Callers cannot mutate the held config through Get.
	s.Get().General.Theme = "dark"
	assert.Equal(t, "light", s.Get().General.Theme)
}

func TestSettings_ConcurrentAccess(t *testing.T) {
	s := NewSettings(Default())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cfg := s.Get()
			cfg.Advanced.MaxTokens++
			_ = s.Update(cfg)
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, s.Get())
		}()
	}
	wg.Wait()
}

func TestSettings_ListenersSeeChangesInOrder(t *testing.T) {
	s := NewSettings(nil)

	var mu sync.Mutex
	var seen []string
	entered := make(chan struct{})
	release := make(chan struct{})
	s.Subscribe(func(c *Config) {
		if c.General.Theme == "dark" {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, c.General.Theme)
		mu.Unlock()
	})

	update := func(theme string) {
		cfg := s.Get()
		cfg.General.Theme = theme
		assert.NoError(t, s.Update(cfg))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); update("dark") }()
	<-entered
	go func() { defer wg.Done(); update("auto") }()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"dark", "auto"}, seen)
	assert.Equal(t, "auto", s.Get().General.Theme)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	settings := NewSettings(Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, Watch(ctx, path, settings, zap.NewNop()))

	updated := Default()
	updated.General.Theme = "dark"
	require.NoError(t, SaveTOML(updated, path))

	assert.Eventually(t, func() bool {
		return settings.Get().General.Theme == "dark"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUnredact(t *testing.T) {
	prev := Default()
	prev.APIKeys.Google = "g-secret"
	prev.APIKeys.OpenAI = "o-secret"

	incoming := prev.Redacted()
	incoming.APIKeys.OpenAI = "o-new"
	incoming.Unredact(prev)

	assert.Equal(t, "g-secret", incoming.APIKeys.Google)
	assert.Equal(t, "o-new", incoming.APIKeys.OpenAI)
	assert.Empty(t, incoming.APIKeys.Groq)
}
