// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cortex/internal/catalog"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/session"
)

// isolate points HOME at a temp dir and clears CORTEX_* overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		"CORTEX_BACKEND_URL", "CORTEX_GOOGLE_API_KEY", "CORTEX_SERVER_PORT",
		"CORTEX_LOG_LEVEL", "CORTEX_LOCAL_MODE", "CORTEX_THEME",
	} {
		t.Setenv(k, "")
	}
}

func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveTOML(cfg, path))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	code = run(root, args, &errOut)
	return out.String(), errOut.String(), code
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "cortex "+Version)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, code := execute(t, "frobnicate")
	assert.NotEqual(t, ExitSuccess, code)
	assert.Contains(t, stderr, "unknown command")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigShow(t *testing.T) {
	isolate(t)
	path := writeTestConfig(t, func(c *config.Config) { c.APIKeys.Google = "secret-key" })

	for _, format := range []string{"toml", "json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			out, _, code := execute(t, "--config", path, "config", "show", "--format", format)
			require.Equal(t, ExitSuccess, code)
			assert.Contains(t, out, "cortex-v1")
			assert.Contains(t, out, config.RedactedValue)
			assert.NotContains(t, out, "secret-key")
		})
	}

	out, _, code := execute(t, "--config", path, "config", "show", "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 1337, cfg.Advanced.ServerPort)

	_, _, code = execute(t, "--config", path, "config", "show", "--format", "xml")
	assert.Equal(t, ExitUsageError, code)
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	path := writeTestConfig(t, nil)

	out, _, code := execute(t, "--config", path, "config", "path")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, path+"\n", out)

	out, _, code = execute(t, "config", "path")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "not created")
}

func TestConfigGetSet(t *testing.T) {
	isolate(t)
	path := writeTestConfig(t, nil)

	out, _, code := execute(t, "--config", path, "config", "set", "general.theme", "dark")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "general.theme = dark")

	saved, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", saved.General.Theme)

	out, _, code = execute(t, "--config", path, "config", "get", "general.theme")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "dark\n", out)

	out, _, code = execute(t, "--config", path, "config", "set", "api_keys.google", "g-123")
	require.Equal(t, ExitSuccess, code)
	assert.NotContains(t, out, "g-123")

	out, _, code = execute(t, "--config", path, "config", "get", "api_keys.google")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, config.RedactedValue+"\n", out)

	_, _, code = execute(t, "--config", path, "config", "set", "general.theme", "neon")
	assert.Equal(t, ExitConfigError, code)

	_, _, code = execute(t, "--config", path, "config", "get", "general.nope")
	assert.Equal(t, ExitUsageError, code)

	_, _, code = execute(t, "--config", path, "config", "set", "advanced.server_port", "abc")
	assert.Equal(t, ExitUsageError, code)
}

func TestConfigKeys(t *testing.T) {
	out, _, code := execute(t, "config", "keys")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "advanced.server_port\n")
	assert.Contains(t, out, "backend.url\n")
}

// =============================================================================
// MODELS & ASK
// =============================================================================

func TestModelsCommand(t *testing.T) {
	isolate(t)
	path := writeTestConfig(t, nil)

	out, _, code := execute(t, "--config", path, "models")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "* cortex-v1")
	assert.Contains(t, out, "installed")

	out, _, code = execute(t, "--config", path, "models", "--category", "cloud")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "openai-gpt4")
	assert.NotContains(t, out, "llama-3-8b")

	out, _, code = execute(t, "--config", path, "models", "-q", "nothing-matches")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No models match.")

	_, _, code = execute(t, "--config", path, "models", "--category", "bogus")
	assert.Equal(t, ExitUsageError, code)
}

func newBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat":
			fmt.Fprintf(w, `{"response":%q}`, reply)
		case "/api/generate-title":
			fmt.Fprint(w, `{"title":"A title"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAsk(t *testing.T) {
	isolate(t)
	backend := newBackend(t, "Hello from the backend")
	path := writeTestConfig(t, func(c *config.Config) { c.Backend.URL = backend.URL })

	out, _, code := execute(t, "--config", path, "ask", "hi", "there")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Hello from the backend\n", out)
}

func TestAsk_BackendDownWithErrorFallback(t *testing.T) {
	isolate(t)
	backend := newBackend(t, "unused")
	backend.Close()
	path := writeTestConfig(t, func(c *config.Config) {
		c.Backend.URL = backend.URL
		c.Backend.Fallback = config.FallbackError
	})

	out, _, code := execute(t, "--config", path, "ask", "hi")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, out, "Sorry, I encountered an error. Please try again.")
}

func TestServe_Disabled(t *testing.T) {
	isolate(t)
	path := writeTestConfig(t, func(c *config.Config) { c.Advanced.EnableAPI = false })

	_, stderr, code := execute(t, "--config", path, "serve")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, stderr, "disabled")
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"validation", config.ValidateErrors{{Field: "x", Message: "y"}}, ExitConfigError},
		{"wrapped validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "x"}}), ExitConfigError},
		{"conversation", &CommandError{Command: "ask", Action: "send", Err: session.ErrNotFound}, ExitNotFound},
		{"model", catalog.ErrNotFound, ExitNotFound},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
