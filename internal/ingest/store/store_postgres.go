package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sitecarbon/internal/ingest/models"
	"sitecarbon/internal/platform/postgres"
	id "sitecarbon/pkg/domain"
	"sitecarbon/pkg/platform/sentinel"
)

// batchSize bounds rows per INSERT statement, keeping placeholder counts far
// below the protocol limit.
const batchSize = 500

const deliveryColumns = `id, project_id, contractor_id, location_id, cost_code_id, material_id,
	supplier_id, unit_id, delivery_date, docket_number, quantity, total_cost, embodied_co2,
	source_raw_id, created_at`

const rawDeliveryColumns = `id, project_id, contractor_name, contractor_id, delivery_date,
	location_name, location_id, cost_code_name, cost_code_id, docket_number, material_type_name,
	material_type_id, supplier_name, supplier_id, material_name, material_id, unit_name, unit_id,
	quantity, total_cost, material_description, origin_postcode, validation_errors, created_at`

// PostgresDeliveryStore persists resolved deliveries in PostgreSQL.
type PostgresDeliveryStore struct {
	db *sql.DB
	tx *postgres.TxRunner
}

func NewPostgresDeliveryStore(db *sql.DB) *PostgresDeliveryStore {
	return &PostgresDeliveryStore{db: db, tx: postgres.NewTxRunner(db)}
}

// InsertMany writes the batch in one transaction; either every row lands or
// none does.
func (s *PostgresDeliveryStore) InsertMany(ctx context.Context, deliveries []models.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for start := 0; start < len(deliveries); start += batchSize {
			end := min(start+batchSize, len(deliveries))
			if err := s.insertChunk(ctx, deliveries[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresDeliveryStore) Insert(ctx context.Context, delivery models.Delivery) error {
	return s.InsertMany(ctx, []models.Delivery{delivery})
}

func (s *PostgresDeliveryStore) insertChunk(ctx context.Context, chunk []models.Delivery) error {
	const cols = 15
	args := make([]any, 0, len(chunk)*cols)
	for _, d := range chunk {
		args = append(args,
			uuid.UUID(d.ID),
			uuid.UUID(d.ProjectID),
			uuid.UUID(d.ContractorID),
			uuid.UUID(d.LocationID),
			nullUUID(d.CostCodeID),
			uuid.UUID(d.MaterialID),
			uuid.UUID(d.SupplierID),
			nullUUID(d.UnitID),
			d.DeliveryDate,
			nullString(d.DocketNumber),
			d.Quantity,
			nullFloat(d.TotalCost),
			d.EmbodiedCO2,
			nullUUID(d.SourceRawID),
			d.CreatedAt,
		)
	}
	query := "INSERT INTO deliveries (" + deliveryColumns + ") VALUES " + placeholders(len(chunk), cols)
	if _, err := postgres.Conn(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert deliveries: %w", postgres.TranslateError(err))
	}
	return nil
}

// ExistsBySource reports whether a delivery was already promoted from rawID.
func (s *PostgresDeliveryStore) ExistsBySource(ctx context.Context, rawID id.RawDeliveryID) (bool, error) {
	var exists bool
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1 OR source_raw_id = $1)`,
		uuid.UUID(rawID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check promoted delivery: %w", postgres.TranslateError(err))
	}
	return exists, nil
}

// PostgresRawDeliveryStore persists parked rows in PostgreSQL.
type PostgresRawDeliveryStore struct {
	db *sql.DB
	tx *postgres.TxRunner
}

func NewPostgresRawDeliveryStore(db *sql.DB) *PostgresRawDeliveryStore {
	return &PostgresRawDeliveryStore{db: db, tx: postgres.NewTxRunner(db)}
}

func (s *PostgresRawDeliveryStore) InsertMany(ctx context.Context, raws []models.RawDelivery) error {
	if len(raws) == 0 {
		return nil
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for start := 0; start < len(raws); start += batchSize {
			end := min(start+batchSize, len(raws))
			if err := s.insertChunk(ctx, raws[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresRawDeliveryStore) insertChunk(ctx context.Context, chunk []models.RawDelivery) error {
	const cols = 24
	args := make([]any, 0, len(chunk)*cols)
	for _, r := range chunk {
		errs := r.ValidationErrors
		if errs == nil {
			errs = []string{}
		}
		encoded, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("marshal validation errors: %w", err)
		}
		args = append(args,
			uuid.UUID(r.ID),
			uuid.UUID(r.ProjectID),
			r.ContractorName,
			nullUUID(r.ContractorID),
			r.DeliveryDate,
			r.LocationName,
			nullUUID(r.LocationID),
			r.CostCodeName,
			nullUUID(r.CostCodeID),
			r.DocketNumber,
			r.MaterialTypeName,
			nullUUID(r.MaterialTypeID),
			r.SupplierName,
			nullUUID(r.SupplierID),
			r.MaterialName,
			nullUUID(r.MaterialID),
			r.UnitName,
			nullUUID(r.UnitID),
			nullFloat(r.Quantity),
			nullFloat(r.TotalCost),
			r.MaterialDescription,
			r.OriginPostcode,
			string(encoded),
			r.CreatedAt,
		)
	}
	query := "INSERT INTO raw_deliveries (" + rawDeliveryColumns + ") VALUES " + placeholders(len(chunk), cols)
	if _, err := postgres.Conn(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert raw deliveries: %w", postgres.TranslateError(err))
	}
	return nil
}

func (s *PostgresRawDeliveryStore) FindByID(ctx context.Context, rawID id.RawDeliveryID) (*models.RawDelivery, error) {
	row := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+rawDeliveryColumns+` FROM raw_deliveries WHERE id = $1`, uuid.UUID(rawID))
	r, err := scanRawDelivery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find raw delivery: %w", err)
	}
	return r, nil
}

// ListByProject returns the project's parked rows, newest first.
func (s *PostgresRawDeliveryStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.RawDelivery, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+rawDeliveryColumns+` FROM raw_deliveries WHERE project_id = $1
		 ORDER BY created_at DESC`, uuid.UUID(projectID))
	if err != nil {
		return nil, fmt.Errorf("list raw deliveries: %w", err)
	}
	defer rows.Close()

	var out []models.RawDelivery
	for rows.Next() {
		r, err := scanRawDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw delivery: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list raw deliveries: %w", err)
	}
	return out, nil
}

func (s *PostgresRawDeliveryStore) Delete(ctx context.Context, rawID id.RawDeliveryID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM raw_deliveries WHERE id = $1`, uuid.UUID(rawID))
	if err != nil {
		return fmt.Errorf("delete raw delivery: %w", postgres.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete raw delivery: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRawDelivery(row scanner) (*models.RawDelivery, error) {
	var (
		r                                       models.RawDelivery
		rid, pid                                uuid.UUID
		contractor, location, costCode, matType uuid.NullUUID
		supplier, material, unit                uuid.NullUUID
		quantity, totalCost                     sql.NullFloat64
		validation                              []byte
	)
	err := row.Scan(&rid, &pid,
		&r.ContractorName, &contractor, &r.DeliveryDate,
		&r.LocationName, &location, &r.CostCodeName, &costCode,
		&r.DocketNumber, &r.MaterialTypeName, &matType,
		&r.SupplierName, &supplier, &r.MaterialName, &material,
		&r.UnitName, &unit, &quantity, &totalCost,
		&r.MaterialDescription, &r.OriginPostcode, &validation, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.ID = id.RawDeliveryID(rid)
	r.ProjectID = id.ProjectID(pid)
	r.ContractorID = idPtr[id.ContractorID](contractor)
	r.LocationID = idPtr[id.LocationID](location)
	r.CostCodeID = idPtr[id.CostCodeID](costCode)
	r.MaterialTypeID = idPtr[id.MaterialTypeID](matType)
	r.SupplierID = idPtr[id.SupplierID](supplier)
	r.MaterialID = idPtr[id.MaterialID](material)
	r.UnitID = idPtr[id.UnitID](unit)
	if quantity.Valid {
		r.Quantity = &quantity.Float64
	}
	if totalCost.Valid {
		r.TotalCost = &totalCost.Float64
	}
	if len(validation) > 0 {
		if err := json.Unmarshal(validation, &r.ValidationErrors); err != nil {
			return nil, fmt.Errorf("unmarshal validation errors: %w", err)
		}
	}
	return &r, nil
}

// placeholders renders "($1, ..., $cols), (...)" for rows rows.
func placeholders(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func nullUUID[T ~[16]byte](v *T) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func idPtr[T ~[16]byte](n uuid.NullUUID) *T {
	if !n.Valid {
		return nil
	}
	v := T(n.UUID)
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
