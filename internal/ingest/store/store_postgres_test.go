package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecarbon/internal/ingest/models"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func newMockDB(t *testing.T) (*PostgresDeliveryStore, *PostgresRawDeliveryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresDeliveryStore(db), NewPostgresRawDeliveryStore(db), mock
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($1, $2, $3), ($4, $5, $6)", placeholders(2, 3))
	assert.Equal(t, "($1)", placeholders(1, 1))
}

func TestPostgresInsertManyEmptyIsNoop(t *testing.T) {
	deliveries, raws, mock := newMockDB(t)

	require.NoError(t, deliveries.InsertMany(context.Background(), nil))
	require.NoError(t, raws.InsertMany(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertManyDeliveries(t *testing.T) {
	deliveries, _, mock := newMockDB(t)
	pid := id.ProjectID(uuid.New())
	batch := []models.Delivery{newDelivery(pid, time.Now()), newDelivery(pid, time.Now())}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deliveries (")).
		WithArgs(anyArgs(30)...).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, deliveries.InsertMany(context.Background(), batch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertManyChunksLargeBatches(t *testing.T) {
	deliveries, _, mock := newMockDB(t)
	pid := id.ProjectID(uuid.New())
	batch := make([]models.Delivery, batchSize+1)
	for i := range batch {
		batch[i] = newDelivery(pid, time.Now())
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deliveries (")).
		WithArgs(anyArgs(batchSize * 15)...).
		WillReturnResult(sqlmock.NewResult(0, batchSize))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deliveries (")).
		WithArgs(anyArgs(15)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, deliveries.InsertMany(context.Background(), batch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertManyRollsBackOnConflict(t *testing.T) {
	deliveries, _, mock := newMockDB(t)
	pid := id.ProjectID(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deliveries (")).
		WithArgs(anyArgs(15)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := deliveries.InsertMany(context.Background(), []models.Delivery{newDelivery(pid, time.Now())})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertManyRawEncodesValidationErrors(t *testing.T) {
	_, raws, mock := newMockDB(t)
	raw := models.RawDelivery{
		ID:               id.RawDeliveryID(uuid.New()),
		ProjectID:        id.ProjectID(uuid.New()),
		ContractorName:   "Nobody",
		ValidationErrors: []string{`Contractor "Nobody" not found`},
		CreatedAt:        time.Now(),
	}
	args := anyArgs(24)
	args[2] = "Nobody"
	args[22] = `["Contractor \"Nobody\" not found"]`

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO raw_deliveries (")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, raws.InsertMany(context.Background(), []models.RawDelivery{raw}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindRawDeliveryNotFound(t *testing.T) {
	_, raws, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM raw_deliveries WHERE id = $1")).
		WillReturnError(errors.New("connection reset by peer"))
	_, err := raws.FindByID(context.Background(), id.RawDeliveryID(uuid.New()))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM raw_deliveries WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(rawColumnNames()))
	_, err = raws.FindByID(context.Background(), id.RawDeliveryID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRawDeliveriesScansPartialIDs(t *testing.T) {
	_, raws, mock := newMockDB(t)
	pid := id.ProjectID(uuid.New())
	rid, contractor := uuid.New(), uuid.New()
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(rawColumnNames()).AddRow(
		rid.String(), uuid.UUID(pid).String(),
		"Acme", contractor.String(), "2024-01-15",
		"Block Z", nil, "", nil,
		"DOC-1", "Concrete", nil,
		"Holcim", nil, "C32", nil,
		"m3", nil, 12.5, nil,
		"", "2000", []byte(`["Design Package \"Block Z\" not found for this project"]`), created,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM raw_deliveries WHERE project_id = $1")).
		WithArgs(uuid.UUID(pid).String()).
		WillReturnRows(rows)

	got, err := raws.ListByProject(context.Background(), pid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, id.RawDeliveryID(rid), r.ID)
	require.NotNil(t, r.ContractorID)
	assert.Equal(t, id.ContractorID(contractor), *r.ContractorID)
	assert.Nil(t, r.LocationID)
	assert.Nil(t, r.TotalCost)
	require.NotNil(t, r.Quantity)
	assert.InDelta(t, 12.5, *r.Quantity, 1e-9)
	assert.Equal(t, []string{`Design Package "Block Z" not found for this project`}, r.ValidationErrors)
	assert.Equal(t, created, r.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteRawDelivery(t *testing.T) {
	_, raws, mock := newMockDB(t)
	rid := id.RawDeliveryID(uuid.New())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM raw_deliveries WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, raws.Delete(context.Background(), rid))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM raw_deliveries WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, raws.Delete(context.Background(), rid), sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExistsBySource(t *testing.T) {
	deliveries, _, mock := newMockDB(t)
	rid := id.RawDeliveryID(uuid.New())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1 OR source_raw_id = $1)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := deliveries.ExistsBySource(context.Background(), rid)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func rawColumnNames() []string {
	return []string{
		"id", "project_id", "contractor_name", "contractor_id", "delivery_date",
		"location_name", "location_id", "cost_code_name", "cost_code_id", "docket_number",
		"material_type_name", "material_type_id", "supplier_name", "supplier_id",
		"material_name", "material_id", "unit_name", "unit_id", "quantity", "total_cost",
		"material_description", "origin_postcode", "validation_errors", "created_at",
	}
}
