package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  host: db\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "audits:process", cfg.Redis.Queue)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, []string{".csv", ".xlsx"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "cost", cfg.Processing.CostField)
	assert.Equal(t, 30*time.Minute, cfg.Processing.StaleAfter)
	assert.Equal(t, "data/uploads", cfg.Upload.Dir)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: postgres
  host: pg
  user: audit
  password: "p@ss"
  name: audits
auth:
  apiKeys:
    org-1: key-1
processing:
  staleAfter: 5m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "key-1", cfg.Auth.APIKeys["org-1"])
	assert.Equal(t, 5*time.Minute, cfg.Processing.StaleAfter)
	assert.Equal(t, "postgres://audit:p%40ss@pg:5432/audits?sslmode=disable", cfg.PostgresDSN())
}

func TestParse_RejectsUnknownDriver(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\n"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  host: db\n  user: u\n  password: p\n  name: n\n"))
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "json", "warn")
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])
}
