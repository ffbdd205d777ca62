package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
auth:
  jwt_secret: 0123456789abcdef-test
  admin_password: secret
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ProviderMemory, cfg.Provider.Kind)
	assert.Equal(t, StoreSheet, cfg.Store.Kind)
	assert.Equal(t, "Leads", cfg.Store.SheetName)
	assert.Equal(t, "nda", cfg.Templates.NDA)
	assert.Equal(t, "term_sheet_construction", cfg.Templates.TermSheetConstruction)
	assert.Equal(t, 24*time.Hour, cfg.Webhook.DedupeTTL)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.ProcessTimeout)
	assert.False(t, cfg.Render.ReplaceBareWords)
	assert.Equal(t, "Construction Loan", cfg.Defaults.FinancingType)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Setenv("OXILEADS_FOLDERS_PHASE_ONE_ROOT", "env-root")
	t.Setenv("OXILEADS_PROVIDER_CALL_TIMEOUT", "5s")
	t.Setenv("OXILEADS_IDENTITY_STRICT", "true")
	t.Setenv("OXILEADS_RENDER_REPLACE_BARE_WORDS", "true")

	cfg, err := LoadBytes([]byte(minimal + `
folders:
  phase_one_root: yaml-root
  phase_two_root: yaml-two
templates:
  nda: 1AbC
`))
	require.NoError(t, err)
	assert.Equal(t, "env-root", cfg.Folders.PhaseOneRoot)
	assert.Equal(t, "yaml-two", cfg.Folders.PhaseTwoRoot)
	assert.Equal(t, "1AbC", cfg.Templates.NDA)
	assert.Equal(t, 5*time.Second, cfg.Provider.CallTimeout)
	assert.True(t, cfg.Identity.Strict)
	assert.True(t, cfg.Render.ReplaceBareWords)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal+"server:\n  addr: \":9000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"short secret", "auth:\n  jwt_secret: short\n  admin_password: x\n", "jwt_secret"},
		{"no admin", "auth:\n  jwt_secret: 0123456789abcdef\n", "admin_password"},
		{"bad provider", minimal + "provider:\n  kind: dropbox\n", "provider.kind"},
		{"google without creds", minimal + "provider:\n  kind: google\n", "credentials_file"},
		{"postgres without dsn", minimal + "store:\n  kind: postgres\n", "postgres_dsn"},
		{"bad store", minimal + "store:\n  kind: csv\n", "store.kind"},
		{"bad timezone", minimal + "defaults:\n  timezone: Mars/Olympus\n", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
