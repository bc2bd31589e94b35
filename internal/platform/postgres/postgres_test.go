package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecarbon/pkg/platform/sentinel"
	txcontext "sitecarbon/pkg/platform/tx"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, TranslateError(nil))
	assert.ErrorIs(t, TranslateError(sql.ErrNoRows), sentinel.ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "deliveries_source_raw_id_key"}
	err := TranslateError(dup)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)

	other := errors.New("syntax")
	assert.Equal(t, other, TranslateError(other))
}

func TestSchemaDeclaresIdempotencyKey(t *testing.T) {
	assert.True(t, strings.Contains(Schema(), "source_raw_id    UUID UNIQUE"))
	assert.True(t, strings.Contains(Schema(), "validation_errors      JSONB"))
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS projects").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunner(t *testing.T) {
	t.Run("commits on success and exposes tx", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		runner := NewTxRunner(db)
		err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := txcontext.From(ctx)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewTxRunner(db).RunInTx(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = NewTxRunner(db).RunInTx(ctx, func(context.Context) error { return nil })
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
