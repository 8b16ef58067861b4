package helper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pr_panel/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
bitbucket:
  url: https://bitbucket.example.com
  login: jdoe
  password: from-file
  project: PRJ
  slug: backend
  timeout: 10s
telegram:
  chatId: 42
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "panel-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://bitbucket.example.com/", cfg.Bitbucket.URL)
	assert.Equal(t, "jdoe", cfg.Bitbucket.Login)
	assert.Equal(t, "from-file", cfg.Bitbucket.Password)
	assert.Equal(t, 10*time.Second, cfg.Bitbucket.Timeout)
	assert.Equal(t, 5.0, cfg.Bitbucket.RequestsPerSecond)
	assert.Equal(t, 10, cfg.Bitbucket.Burst)
	assert.Equal(t, 25, cfg.Bitbucket.PageLimit)
	assert.Equal(t, ":1994", cfg.Server.Addr)
	assert.Equal(t, "origin", cfg.Git.RemoteName)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, model.SeverityWarning, cfg.Telegram.MinSeverity)
}

func TestLoadConfigFile_EnvOverrides(t *testing.T) {
	t.Setenv("BITBUCKET_PASSWORD", "from-env")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bitbucket.Password)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, t.TempDir(), "bitbucket: [not, a, map")
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}

func TestValidateBitbucket(t *testing.T) {
	ok := model.BitbucketSettings{URL: "https://b/", Login: "u", Password: "p"}
	assert.NoError(t, ValidateBitbucket(ok))

	noURL := ok
	noURL.URL = " "
	assert.ErrorContains(t, ValidateBitbucket(noURL), "bitbucket.url")

	noLogin := ok
	noLogin.Login = ""
	assert.ErrorContains(t, ValidateBitbucket(noLogin), "bitbucket.login")

	noPassword := ok
	noPassword.Password = ""
	assert.ErrorContains(t, ValidateBitbucket(noPassword), "bitbucket.password")
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	reloaded := make(chan *model.Config, 4)
	cw, err := NewConfigWatcher(path, func(cfg *model.Config) { reloaded <- cfg })
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond
	cw.Start()
	defer cw.Close()

	updated := sampleConfig + "server:\n  addr: \":8080\"\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":8080", cfg.Server.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("config watcher did not reload")
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	reloaded := make(chan *model.Config, 1)
	cw, err := NewConfigWatcher(path, func(cfg *model.Config) { reloaded <- cfg })
	require.NoError(t, err)
	cw.debounce = 10 * time.Millisecond
	cw.Start()
	defer cw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
