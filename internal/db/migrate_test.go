package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	n, err := MigrationCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)
	for _, e := range entries {
		body, err := migrationsFS.ReadFile(migrationsDir + "/" + e.Name())
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), e.Name())
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), e.Name())
	}
}

func TestMigrateRequiresURL(t *testing.T) {
	assert.Error(t, MigrateUp(context.Background(), ""))
	assert.Error(t, MigrationStatus(context.Background(), ""))
}
