package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolroom/internal/config"
)

func TestGeneratedDefaultParses(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("shop-1")))
	require.NoError(t, err)
	assert.Equal(t, "shop-1", cfg.Workshop.ID)
	assert.Equal(t, int64(250), cfg.Rental.DailyFineRateCents)
	assert.Equal(t, 7, cfg.Rental.DefaultDays)
	assert.Equal(t, 5, cfg.Locks.AcquireTimeoutSeconds)
	assert.Empty(t, cfg.Webhooks)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default("shop-1")
	cfg.Workshop.ID = ""
	assert.Error(t, cfg.Validate())

	cfg = config.Default("shop-1")
	cfg.Rental.DailyFineRateCents = -1
	assert.Error(t, cfg.Validate())

	cfg = config.Default("shop-1")
	cfg.Rental.DefaultDays = 0
	assert.Error(t, cfg.Validate())

	cfg = config.Default("shop-1")
	cfg.Webhooks = []config.WebhookConfig{{URL: ""}}
	assert.Error(t, cfg.Validate())
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := config.LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	yaml := `workshop:
  id: metrology
  name: Metrology Lab
rental:
  daily_fine_rate_cents: 100
  default_days: 14
locks:
  acquire_timeout_seconds: 2
webhooks:
  - url: https://hooks.example.com/toolroom
    events: [rental.overdue]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toolroom.yml"), []byte(yaml), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "metrology", cfg.Workshop.ID)
	assert.Equal(t, int64(100), cfg.Rental.DailyFineRateCents)
	assert.Equal(t, 14, cfg.Rental.DefaultDays)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"rental.overdue"}, cfg.Webhooks[0].Events)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toolroom.yml"), []byte(":::"), 0o644))
	_, err := config.Load(dir)
	assert.Error(t, err)
}
