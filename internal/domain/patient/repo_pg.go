package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// warehouseStore reads the relational warehouse, one row per event.
type warehouseStore struct {
	db querier
}

func NewWarehouseStore(pool *pgxpool.Pool) Store {
	return &warehouseStore{db: pool}
}

func (s *warehouseStore) Backend() string { return "postgres" }

var patientsTable = pgx.Identifier{SchemaHosp, PatientsTable}.Sanitize()

const patientCols = `subject_id, gender, anchor_age, anchor_year, anchor_year_group,
	to_char(dod, 'YYYY-MM-DD')`

func (s *warehouseStore) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patientCols+` FROM `+patientsTable+` ORDER BY subject_id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	patients, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Patient])
	if err != nil {
		return nil, fmt.Errorf("scan patients: %w", err)
	}
	return patients, nil
}

func (s *warehouseStore) CountPatients(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+patientsTable).Scan(&total); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return total, nil
}

func (s *warehouseStore) GetPatient(ctx context.Context, subjectID int64) (*Patient, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patientCols+` FROM `+patientsTable+` WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", subjectID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Patient])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", subjectID, err)
	}
	return &p, nil
}

// categoryQuery selects every column of the category table for one patient.
// Table names come from the registry and are quoted as identifiers.
func categoryQuery(cat Category) string {
	return `SELECT * FROM ` + pgx.Identifier{cat.Schema, cat.Table}.Sanitize() + ` WHERE subject_id = $1`
}

// FetchCategory ignores cat.Chunked: the warehouse stores one row per event.
func (s *warehouseStore) FetchCategory(ctx context.Context, cat Category, subjectID int64) ([]Row, error) {
	rows, err := s.db.Query(ctx, categoryQuery(cat), subjectID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return out, nil
}
