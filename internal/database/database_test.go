package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/so4t-import/internal/entities"
)

func TestNewDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	assert.True(t, db.DB.Migrator().HasTable(&entities.ImportEvent{}))

	event := &entities.ImportEvent{RunID: "r", Kind: entities.ImportEventArticle, Status: entities.ImportStatusCreated}
	require.NoError(t, db.DB.Create(event).Error)
	require.NoError(t, db.Close())

	// Reopening keeps existing rows.
	db, err = NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int64
	require.NoError(t, db.DB.Model(&entities.ImportEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
