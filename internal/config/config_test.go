package config

import (
	"testing"
	"time"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	require.NoError(t, err)

	assert.Equal(t, db.DialectSQLite, cfg.Dialect)
	assert.Equal(t, "strategy.db", cfg.DSN())
	assert.Equal(t, 10*time.Second, cfg.ReconcileTimeout)
	assert.Zero(t, cfg.AdminID)
	assert.Error(t, cfg.RequireBot())
}

func TestLoadPostgres(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"DB_DRIVER":    "postgres",
		"DATABASE_URL": "postgres://coach@localhost/coach",
		"BOT_TOKEN":    "123:abc",
		"ADMIN_ID":     "42",
	}))
	require.NoError(t, err)

	assert.Equal(t, db.DialectPostgres, cfg.Dialect)
	assert.Equal(t, "postgres://coach@localhost/coach", cfg.DSN())
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.NoError(t, cfg.RequireBot())
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad admin":          {"ADMIN_ID": "admin"},
		"bad driver":         {"DB_DRIVER": "mysql"},
		"postgres no url":    {"DB_DRIVER": "postgres"},
		"api without secret": {"API_ADDR": ":8080"},
		"bad timeout":        {"RECONCILE_TIMEOUT": "soon"},
		"negative timeout":   {"RECONCILE_TIMEOUT": "-1s"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(env(values))
			assert.Error(t, err)
		})
	}
}

func TestLoadReconcileTimeout(t *testing.T) {
	cfg, err := load(env(map[string]string{"RECONCILE_TIMEOUT": "250ms"}))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconcileTimeout)
}
