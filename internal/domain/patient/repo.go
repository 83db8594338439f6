package patient

import (
	"context"
	"errors"
)

var ErrPatientNotFound = errors.New("patient not found")

// Store reads patients and their clinical categories from one backend.
type Store interface {
	// Backend names the storage engine for metrics and health output.
	Backend() string
	// ListPatients returns up to limit patients ordered by subject_id,
	// skipping offset.
	ListPatients(ctx context.Context, limit, offset int) ([]Patient, error)
	CountPatients(ctx context.Context) (int, error)
	// GetPatient returns ErrPatientNotFound when no patient has the id.
	GetPatient(ctx context.Context, subjectID int64) (*Patient, error)
	// FetchCategory returns every row of cat for the patient, flattened.
	FetchCategory(ctx context.Context, cat Category, subjectID int64) ([]Row, error)
}
