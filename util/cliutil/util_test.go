package cliutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	_, err := SetupDatabase("mysql://localhost/db", 4)
	assert.Error(err)

	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	db, err := SetupDatabase("sqlite://"+path, 4)
	if !assert.NoError(err) {
		return
	}
	assert.NoError(db.Exec("CREATE TABLE things (id INTEGER PRIMARY KEY)").Error)
	_, err = os.Stat(path)
	assert.NoError(err)

	sqldb, err := db.DB()
	assert.NoError(err)
	assert.Equal(1, sqldb.Stats().MaxOpenConnections)
	assert.NoError(sqldb.Close())
}

func TestSetupSlog(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("MODAI_LOG_LEVEL", "")
	t.Setenv("MODAI_LOG_FMT", "")

	path := filepath.Join(t.TempDir(), "modai.log")
	logger, err := SetupSlog(LogOptions{LogPath: path, LogFormat: "json", LogLevel: "warn"})
	if !assert.NoError(err) {
		return
	}
	logger.Info("hidden")
	logger.Warn("shown", "comment", "c1")
	raw, err := os.ReadFile(path)
	assert.NoError(err)
	assert.NotContains(string(raw), "hidden")
	assert.Contains(string(raw), `"comment":"c1"`)

	_, err = SetupSlog(LogOptions{LogLevel: "chatty"})
	assert.Error(err)
	_, err = SetupSlog(LogOptions{LogFormat: "xml"})
	assert.Error(err)

	t.Setenv("MODAI_LOG_LEVEL", "loud")
	_, err = SetupSlog(LogOptions{})
	assert.Error(err)
}
