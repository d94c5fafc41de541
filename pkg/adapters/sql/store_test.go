package sql_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/palaver/pkg/adapters/sql"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	_ ports.Storage = (*sql.Store)(nil)
	_ ports.Lister  = (*sql.Store)(nil)
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "state.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestSQLStore_Contract(t *testing.T) {
	store, err := sql.New(setupTestDB(t))
	require.NoError(t, err)
	ports.RunStorageContract(t, store)
}

func TestSQLStore_RowLayout(t *testing.T) {
	db := setupTestDB(t)
	store, err := sql.New(db)
	require.NoError(t, err)
	ctx := context.Background()

	item := &ports.StoreItem{Data: map[string]any{"greeting": "olá"}}
	require.NoError(t, store.Write(ctx, map[string]*ports.StoreItem{"test/users/u1": item}))

	var row sql.Record
	require.NoError(t, db.First(&row, "state_key = ?", "test/users/u1").Error)
	assert.Equal(t, item.ETag, row.ETag)
	assert.JSONEq(t, `{"greeting":"olá"}`, row.Data)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"test/users/u1"}, keys)
}

func TestSQLStore_NilDB(t *testing.T) {
	_, err := sql.New(nil)
	assert.Error(t, err)
}
