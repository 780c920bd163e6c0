package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "5001", cfg.Server.Port)
	require.Equal(t, "solicitations", cfg.Elastic.Index)
	require.Equal(t, "session", cfg.Session.CookieName)
	require.Equal(t, "_", cfg.Fields.HiddenPrefix)
	require.Equal(t, "$", cfg.Fields.ControlPrefix)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("ELASTIC_INDEX", "solicitations-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.Server.Port)
	require.Equal(t, "solicitations-test", cfg.Elastic.Index)
}

func TestLoadServiceKeys(t *testing.T) {
	t.Setenv("SERVICE_KEYS", "SCRAPER=s3cret, MIGRATOR=other")

	keys := loadServiceKeys()
	require.Equal(t, map[string]string{"SCRAPER": "s3cret", "MIGRATOR": "other"}, keys)
}

func TestLoadServiceKeys_IgnoresMalformedEntries(t *testing.T) {
	t.Setenv("SERVICE_KEYS", "SCRAPER=ok,,broken,=nosecret,NONAME=")

	keys := loadServiceKeys()
	require.Equal(t, map[string]string{"SCRAPER": "ok"}, keys)
}
