package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	s, mock := setupMockStore(t)
	dir := t.TempDir()
	writeMigration(t, dir, "002_second.up.sql", "CREATE INDEX second_idx ON widgets (id)")
	writeMigration(t, dir, "001_first.up.sql", "CREATE TABLE widgets (id INT)")
	writeMigration(t, dir, "001_first.down.sql", "DROP TABLE widgets")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_first.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("002_second.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE INDEX second_idx").
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("002_second.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RunMigrations(context.Background(), dir)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_MissingDir(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	err := s.RunMigrations(context.Background(), filepath.Join(t.TempDir(), "absent"))

	assert.ErrorContains(t, err, "reading migrations directory")
}
