package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o600))

	got, err := readInput(path, []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, "package main", got)

	got, err = readInput("", []string{"x := 1"})
	require.NoError(t, err)
	assert.Equal(t, "x := 1", got)

	_, err = readInput("", nil)
	assert.Error(t, err)

	_, err = readInput(filepath.Join(t.TempDir(), "missing.go"), nil)
	assert.Error(t, err)
}

func TestGenerateTemplateConfig(t *testing.T) {
	dev, err := generateTemplateConfig("development")
	require.NoError(t, err)
	assert.True(t, dev.Database.Enabled)
	assert.Equal(t, database.TypeSQLite, dev.Database.Type)
	assert.Equal(t, cache.BackendMemory, dev.Cache.Backend)
	assert.Len(t, dev.Models, 5)
	require.NoError(t, dev.Validate())

	prod, err := generateTemplateConfig("production")
	require.NoError(t, err)
	assert.Equal(t, database.TypePostgres, prod.Database.Type)
	assert.Equal(t, cache.BackendTiered, prod.Cache.Backend)
	assert.Equal(t, "json", prod.Monitoring.Logging.Format)

	_, err = generateTemplateConfig("staging")
	assert.Error(t, err)
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "high", orDash("high"))
}
