// Package contractor implements registration and lookup of redeemers.
package contractor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vouchsafe/internal/platform/metrics"
	"vouchsafe/internal/store"
	dErrors "vouchsafe/pkg/domain-errors"
	"vouchsafe/pkg/platform/sentinel"
	"vouchsafe/pkg/requestcontext"
)

// Store is the slice of the record-store client this service needs.
type Store interface {
	Find(ctx context.Context, table, formula string) ([]store.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (store.Record, error)
}

// Service orchestrates contractor registration against the record store.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(st Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: st, logger: logger, metrics: m}
}

// Register creates a contractor if the phone number is not already on file
// and returns the new row id.
//
// Uniqueness is check-then-create with no store-side constraint, the same gap
// the phone lookup always had. The lookup is a server-side filtered query
// rather than a full table scan.
func (s *Service) Register(ctx context.Context, name, phone string) (string, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return "", dErrors.New(dErrors.CodeValidation, "name and phone are required")
	}

	existing, err := s.store.Find(ctx, store.TableContractors, store.FilterByPhone(phone))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, registrationFailure(err))
	}
	if len(existing) > 0 {
		return "", dErrors.New(dErrors.CodeConflict, "contractor already exists")
	}

	created, err := s.store.Create(ctx, store.TableContractors, map[string]any{
		store.FieldName:  name,
		store.FieldPhone: phone,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, registrationFailure(err))
	}
	if created.ID == "" {
		return "", dErrors.New(dErrors.CodeInternal, "store returned no record")
	}

	s.logger.InfoContext(ctx, "contractor registered",
		"request_id", requestcontext.RequestID(ctx),
		"contractor_id", created.ID,
	)
	s.metrics.IncrementContractorsRegistered()
	return created.ID, nil
}

// FindByPhone resolves a registered contractor by exact phone match.
// Returns sentinel.ErrNotFound when no contractor carries the number.
func (s *Service) FindByPhone(ctx context.Context, phone string) (store.Contractor, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return store.Contractor{}, sentinel.ErrNotFound
	}

	records, err := s.store.Find(ctx, store.TableContractors, store.FilterByPhone(phone))
	if err != nil {
		return store.Contractor{}, dErrors.Wrap(err, dErrors.CodeInternal, "contractor lookup failed")
	}
	if len(records) == 0 {
		return store.Contractor{}, sentinel.ErrNotFound
	}
	return store.ContractorFromRecord(records[0])
}

// registrationFailure carries the store's own error text into the user-facing
// message; handlers frame it as "Contractor registration failed - <detail>".
func registrationFailure(err error) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.Body
	}
	return "record store unavailable"
}
