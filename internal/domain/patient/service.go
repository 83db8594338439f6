package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/copilot/internal/platform/metrics"
	"github.com/ehr/copilot/pkg/pagination"
)

// CategoryError reports the category whose fetch failed an aggregation.
type CategoryError struct {
	Category string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }

type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger.With().Str("component", "patient").Logger()}
}

// Backend names the storage engine behind the service.
func (s *Service) Backend() string {
	return s.store.Backend()
}

// ListPatients runs the page query and the total count concurrently. The two
// reads are not taken from one snapshot.
func (s *Service) ListPatients(ctx context.Context, p pagination.Params) (*Page, error) {
	var (
		patients []Patient
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		patients, err = s.store.ListPatients(gctx, p.Limit, p.Offset)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountPatients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pagination.NewResponse(patients, total, p), nil
}

// GetFullRecord loads the patient and then every registered category
// concurrently. The first failing category cancels the rest and fails the
// whole record with a *CategoryError.
func (s *Service) GetFullRecord(ctx context.Context, subjectID int64) (*FullRecord, error) {
	p, err := s.store.GetPatient(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	results := make([][]Row, len(Categories))
	backend := s.store.Backend()

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range Categories {
		g.Go(func() error {
			start := time.Now()
			rows, err := s.store.FetchCategory(gctx, cat, subjectID)
			metrics.RecordCategoryFetch(backend, cat.Name, time.Since(start))
			if err != nil {
				metrics.RecordAggregationFailure(cat.Name)
				return &CategoryError{Category: cat.Name, Err: err}
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Int64("subject_id", subjectID).Msg("full record aggregation failed")
		return nil, err
	}

	record := &FullRecord{Patient: p, Categories: make(map[string][]Row, len(Categories))}
	for i, cat := range Categories {
		record.Categories[cat.Name] = results[i]
	}
	return record, nil
}
