package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "themekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "site:\n  title: Test Site\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Site", cfg.Site.Title)
	assert.Equal(t, "content", cfg.Content.Dir)
	assert.Equal(t, "assets", cfg.Assets.Dir)
	assert.Equal(t, []string{"main.css", "main.js"}, cfg.Assets.Entries)
	assert.Equal(t, "public", cfg.Output.Dir)
	assert.Equal(t, "/assets/", cfg.Output.PublicBase)
	assert.Equal(t, 3300, cfg.Dev.Port)
	assert.Equal(t, 200*time.Millisecond, cfg.Dev.Debounce.QuietWindow)
	assert.Equal(t, 2*time.Second, cfg.Dev.Debounce.MaxDelay)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("THEMEKIT_TEST_OUTPUT", "dist")
	path := writeConfig(t, "output:\n  dir: ${THEMEKIT_TEST_OUTPUT}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.Output.Dir)
	assert.Equal(t, filepath.Join("dist", "manifest.json"), cfg.ManifestPath())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidateRejectsBadEntries(t *testing.T) {
	cfg := Default()
	cfg.Assets.Entries = []string{"main.wasm"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestValidateRejectsInvertedDebounce(t *testing.T) {
	cfg := Default()
	cfg.Dev.Debounce.QuietWindow = 3 * time.Second
	cfg.Dev.Debounce.MaxDelay = time.Second
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeRetention(t *testing.T) {
	cfg := Default()
	cfg.History.Retention = -time.Hour
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsRelativePublicBase(t *testing.T) {
	cfg := Default()
	cfg.Output.PublicBase = "assets/"
	require.Error(t, cfg.Validate())
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "site:\n  title: existing\n")

	err := Init(path, false)
	require.Error(t, err)

	require.NoError(t, Init(path, true))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "My Site", cfg.Site.Title)
}
