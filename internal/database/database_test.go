package database

import (
	"testing"

	"github.com/kinemo/motionrec/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqlite_MemoryIsPrivate(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	assert.True(t, a.Migrator().HasTable(&model.Recording{}))
	assert.False(t, b.Migrator().HasTable(&model.Recording{}))
}

func TestManager_SetupAndClose(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSqlite(""))
	require.NoError(t, m.Setup())

	for _, tbl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(tbl))
	}

	require.NoError(t, m.Close())
	assert.Nil(t, m.DB)
	assert.NoError(t, m.Close())
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
}
