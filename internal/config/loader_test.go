package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr bool
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 8080, cfg.Server.Listen.Port)
				require.True(t, cfg.Server.Cache.Enabled)
				require.Equal(t, "v1", cfg.Server.Cache.Version)
				require.Equal(t, 2_592_000, cfg.Server.Cache.SoftTTLSeconds)
				require.Equal(t, 3_456_000, cfg.Server.Cache.HardTTLSeconds)
			},
		},
		{
			name: "merges file overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				contents := "server:\n  listen:\n    port: 9090\n  cache:\n    version: v2\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Server.Listen.Port)
				require.Equal(t, "v2", cfg.Server.Cache.Version)
			},
		},
		{
			name: "merges json file overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.json")
				contents := `{"server": {"provider": {"baseUrl": "https://api.example.com/v1"}}}`
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "https://api.example.com/v1", cfg.Server.Provider.BaseURL)
			},
		},
		{
			name: "merges toml file overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.toml")
				contents := "[server.cache]\nbackend = \"redis\"\n[server.cache.redis]\naddress = \"localhost:6379\"\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "redis", cfg.Server.Cache.Backend)
				require.Equal(t, "localhost:6379", cfg.Server.Cache.Redis.Address)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				require.NoError(t, os.WriteFile(path, []byte("server:\n  listen:\n    port: 9090\n"), 0o600))
				t.Setenv("SOCIALLENS_SERVER__LISTEN__PORT", "9091")
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Server.Listen.Port)
			},
		},
		{
			name: "maps camel-case env keys",
			setup: func(t *testing.T) []string {
				t.Setenv("SOCIALLENS_SERVER__CACHE__SOFTTTLSECONDS", "3600")
				t.Setenv("SOCIALLENS_SERVER__CACHE__HARDTTLSECONDS", "7200")
				t.Setenv("SOCIALLENS_SERVER__PROVIDER__APIKEY", "secret")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 3600, cfg.Server.Cache.SoftTTLSeconds)
				require.Equal(t, 7200, cfg.Server.Cache.HardTTLSeconds)
				require.Equal(t, "secret", cfg.Server.Provider.APIKey)
			},
		},
		{
			name: "rejects hard ttl below soft ttl",
			setup: func(t *testing.T) []string {
				t.Setenv("SOCIALLENS_SERVER__CACHE__HARDTTLSECONDS", "60")
				return nil
			},
			wantErr: true,
		},
		{
			name: "rejects missing file",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "absent.yaml")}
			},
			wantErr: true,
		},
		{
			name: "rejects unknown file format",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.ini")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
				return []string{path}
			},
			wantErr: true,
		},
		{
			name: "rejects redis backend without address",
			setup: func(t *testing.T) []string {
				t.Setenv("SOCIALLENS_SERVER__CACHE__BACKEND", "redis")
				return nil
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := tc.setup(t)
			loader := NewLoader("SOCIALLENS", files...)
			cfg, err := loader.Load(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.assert != nil {
				tc.assert(t, cfg)
			}
		})
	}
}
