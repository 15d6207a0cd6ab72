package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationGuardsDoubleBooking(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "migrations/0001_init.up.sql")
	require.NoError(t, err)

	sql := string(raw)
	assert.Contains(t, sql, "CREATE UNIQUE INDEX IF NOT EXISTS appointments_doctor_time_booked_uniq")
	assert.Contains(t, sql, "WHERE status = 'BOOKED'")
}

func TestConnectPostgresRejectsEmptyDSN(t *testing.T) {
	_, err := ConnectPostgres(t.Context(), "", PoolOptions{})
	require.Error(t, err)
}
