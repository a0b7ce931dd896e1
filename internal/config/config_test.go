package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Empty(t, cfg.Redis.Host)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 9090\ndatabase:\n  driver: mysql\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
}

func TestInit_ClientDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	cfg := Client()
	require.NotNil(t, cfg)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Millisecond, cfg.Chat.TypewriterTick)
	assert.Equal(t, "natural", cfg.Chat.TypingStyle)
	assert.Equal(t, filepath.Join(dir, "chat.db"), cfg.Store.Path)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
}

func TestSaveIdentity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	require.NoError(t, SaveIdentity("42", "alice"))
	assert.Equal(t, "42", GetUserID())

	// 重新加载后仍然存在
	require.NoError(t, Init(dir))
	assert.Equal(t, "42", GetUserID())

	require.NoError(t, ClearIdentity())
	assert.Empty(t, GetUserID())
}

func TestSetServerURL(t *testing.T) {
	require.NoError(t, Init(t.TempDir()))

	SetServerURL("https://chat.example.com")
	assert.Equal(t, "wss://chat.example.com/ws", Client().Server.WSURL)

	SetServerURL("http://localhost:9000/")
	assert.Equal(t, "ws://localhost:9000/ws", Client().Server.WSURL)
}
