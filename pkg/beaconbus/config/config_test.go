package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
)

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "1m30s", 90 * time.Second},
		{"int seconds", 60, time.Minute},
		{"int64 seconds", int64(5), 5 * time.Second},
		{"float seconds", 0.5, 500 * time.Millisecond},
		{"duration", 2 * time.Second, 2 * time.Second},
		{"invalid string", "soon", time.Hour},
		{"wrong type", true, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", time.Hour))
		})
	}
}

func TestAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":    "minion",
		"enabled": true,
		"count":   3.0,
		"ratio":   2,
		"frac":    1.5,
		"section": map[string]any{"k": "v"},
		"legacy":  map[any]any{"k": "v", 1: "skip"},
	})

	assert.Equal(t, "minion", cfg.String("name", ""))
	assert.Equal(t, "x", cfg.String("enabled", "x"))
	assert.True(t, cfg.Bool("enabled", false))
	assert.Equal(t, 3, cfg.Int("count", 0))
	assert.Equal(t, 7, cfg.Int("frac", 7))
	assert.Equal(t, 2, cfg.Int("ratio", 0))
	assert.Equal(t, "v", cfg.Map("section").String("k", ""))
	assert.Equal(t, map[string]any{"k": "v"}, cfg.Map("legacy").Raw())
	assert.Empty(t, cfg.Map("name").Raw())
	assert.True(t, cfg.Has("name"))
	assert.NotNil(t, config.New(nil).Raw())
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"minion.yaml":  "timeout: 30\nid: web1\n",
		"minion.jsonc": "{\n  // comment\n  \"timeout\": 30,\n  \"id\": \"web1\",\n}\n",
		"minion.toml":  "timeout = 30\nid = \"web1\"\n",
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			cfg, err := config.FromFile(path)
			require.NoError(t, err)
			assert.Equal(t, 30*time.Second, cfg.Duration("timeout", 0))
			assert.Equal(t, "web1", cfg.String("id", ""))
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "minion.ini")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := config.FromFile(path)
		assert.ErrorContains(t, err, "unsupported")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := config.FromYAML([]byte("a: [unterminated"))
		assert.ErrorContains(t, err, "parse yaml")
	})
}
