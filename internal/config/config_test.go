package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	yml := `
server:
  transport: kcp
  game_port: 7000
session:
  min_players: 3
  start_timeout: 30s
leaderboard:
  backend: badger
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kcp", cfg.Server.Transport)
	assert.Equal(t, 7000, cfg.Server.GetGamePort())
	assert.Equal(t, 3, cfg.Session.MinPlayers)
	assert.Equal(t, 30*time.Second, cfg.Session.StartTimeout)
	assert.Equal(t, "badger", cfg.Leaderboard.Backend)

	// не указанные поля остаются по умолчанию
	assert.Equal(t, 60, cfg.Client.TickRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Client.SendInterval)
	assert.Equal(t, 5*time.Second, cfg.Server.DiagnosticsEvery)
}

func TestLoadWithoutPath(t *testing.T) {
	t.Setenv("GAME_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Session.MinPlayers)
}

func TestLoadRejectsBadTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: carrier-pigeon\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	s := ServerConfig{}

	t.Setenv("GAME_PORT", "")
	assert.Equal(t, 6666, s.GetGamePort())

	t.Setenv("GAME_PORT", "7100")
	assert.Equal(t, 7100, s.GetGamePort())

	s.GamePort = 7200
	assert.Equal(t, 7200, s.GetGamePort(), "значение из конфига приоритетнее env")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BOBBLE_TEST_VAR=hello\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BOBBLE_TEST_VAR") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "hello", os.Getenv("BOBBLE_TEST_VAR"))
}
