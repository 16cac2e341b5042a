package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	dsn := Config{Path: "/tmp/wiki.db", BusyTimeout: 2 * time.Second}.DSN()
	path, query, ok := strings.Cut(dsn, "?")
	require.True(t, ok)
	assert.Equal(t, "/tmp/wiki.db", path)
	assert.Contains(t, query, "_busy_timeout=2000")
	assert.Contains(t, query, "_journal_mode=WAL")
	assert.Contains(t, query, "_foreign_keys=on")

	assert.Contains(t, Config{Path: "x.db"}.DSN(), "_busy_timeout=5000")
}

func TestOpenAndMigrate(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "wiki.db"), MaxOpenConns: 1}
	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrate must be repeatable")

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	_, err = db.Exec(`INSERT INTO contributors (id, name, name_key, email, password_hash) VALUES ('1', 'Alice', 'alice', 'A@x.io', 'h')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO contributors (id, name, name_key, email, password_hash) VALUES ('2', 'Bob', 'bob', 'a@X.IO', 'h')`)
	assert.Error(t, err, "email uniqueness ignores case")
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
