package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segadb.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(`
db_name: shop
storage:
  path: /tmp/shop.segadb
  compress: true
server:
  port: 9000
`), 0644))

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.DBName, "shop")
	assert.Equal(t, cfg.Storage.Path, "/tmp/shop.segadb")
	assert.Equal(t, cfg.Storage.Compress, true)
	assert.Equal(t, cfg.Server.Port, 9000)
	// unset keys keep their defaults
	assert.Equal(t, cfg.Storage.WriteInterval, 1000)
	assert.Equal(t, cfg.Server.Log, true)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}
