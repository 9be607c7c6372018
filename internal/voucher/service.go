// Package voucher implements issuance and exactly-once redemption of
// QR value vouchers backed by the external record store.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

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
	Update(ctx context.Context, table, recordID string, fields map[string]any) (store.Record, error)
}

// Contractors resolves registered redeemers. Implemented by
// contractor.Service.
type Contractors interface {
	FindByPhone(ctx context.Context, phone string) (store.Contractor, error)
}

// Artifacts persists rendered voucher images.
type Artifacts interface {
	SaveImage(name string, png []byte) (string, error)
}

// Issued is the outcome of minting one voucher.
type Issued struct {
	Reference int64
	RedeemURL string
	ImagePath string
}

// Service orchestrates the voucher lifecycle: Issued -> Redeemed, terminal,
// no expiry, no cancellation.
type Service struct {
	store         Store
	contractors   Contractors
	artifacts     Artifacts
	locker        Locker
	logger        *slog.Logger
	metrics       *metrics.Metrics
	publicBaseURL string
}

func NewService(
	st Store,
	contractors Contractors,
	artifacts Artifacts,
	locker Locker,
	logger *slog.Logger,
	m *metrics.Metrics,
	publicBaseURL string,
) *Service {
	return &Service{
		store:         st,
		contractors:   contractors,
		artifacts:     artifacts,
		locker:        locker,
		logger:        logger,
		metrics:       m,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

const qrImageSize = 256

// Issue mints a voucher for the given amount, renders its redemption URL as a
// QR image, and returns the reference, URL, and image path.
//
// Zero is a valid amount; negative and non-numeric are not. If the image
// write fails after the row was created, the whole issuance fails and the
// orphaned row id is logged so an operator can reconcile it; the store
// client has no delete to compensate with.
func (s *Service) Issue(ctx context.Context, amountStr string) (Issued, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(amountStr), 64)
	if err != nil {
		return Issued{}, dErrors.New(dErrors.CodeValidation, "Amount must be a number.")
	}
	if amount < 0 {
		return Issued{}, dErrors.New(dErrors.CodeValidation, "Amount must be greater than or equal to 0.")
	}

	created, err := s.store.Create(ctx, store.TableCodes, map[string]any{
		store.FieldAmount:   amount,
		store.FieldRedeemed: false,
	})
	if err != nil {
		return Issued{}, dErrors.Wrap(err, dErrors.CodeInternal, storeFailure(err))
	}
	voucher, err := store.VoucherFromRecord(created)
	if err != nil {
		return Issued{}, err
	}

	redeemURL := fmt.Sprintf("%s/redeem-qr/%d", s.publicBaseURL, voucher.Reference)
	png, err := qrcode.Encode(redeemURL, qrcode.Low, qrImageSize)
	if err != nil {
		return Issued{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not render QR image")
	}

	imagePath, err := s.artifacts.SaveImage(fmt.Sprintf("qr_%d.png", voucher.Reference), png)
	if err != nil {
		s.logger.ErrorContext(ctx, "voucher row created but image write failed, row is orphaned",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", voucher.ID,
			"reference", voucher.Reference,
			"error", err.Error(),
		)
		return Issued{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist QR image")
	}

	s.logger.InfoContext(ctx, "voucher issued",
		"request_id", requestcontext.RequestID(ctx),
		"reference", voucher.Reference,
		"amount", amount,
	)
	s.metrics.IncrementVouchersIssued()
	return Issued{Reference: voucher.Reference, RedeemURL: redeemURL, ImagePath: imagePath}, nil
}

// Lookup fetches a voucher by reference. Returns sentinel.ErrNotFound for an
// unknown reference and sentinel.ErrAlreadyUsed for a redeemed one, so
// callers can tell the cases apart even though the user-facing surface
// renders both as "Not a valid code".
func (s *Service) Lookup(ctx context.Context, reference int64) (store.Voucher, error) {
	if reference <= 0 {
		return store.Voucher{}, sentinel.ErrNotFound
	}

	records, err := s.store.Find(ctx, store.TableCodes, store.FilterByReference(reference))
	if err != nil {
		return store.Voucher{}, dErrors.Wrap(err, dErrors.CodeInternal, "voucher lookup failed")
	}
	if len(records) == 0 {
		return store.Voucher{}, sentinel.ErrNotFound
	}
	voucher, err := store.VoucherFromRecord(records[0])
	if err != nil {
		return store.Voucher{}, err
	}
	if voucher.Redeemed {
		return voucher, sentinel.ErrAlreadyUsed
	}
	return voucher, nil
}

// Redeem marks a voucher redeemed by the contractor holding the given phone
// number, exactly once. The per-reference lock plus the re-read inside the
// critical section close the double-redemption race: of two concurrent
// attempts one commits and the other observes the voucher already redeemed.
func (s *Service) Redeem(ctx context.Context, reference int64, phone string) error {
	release, err := s.locker.Acquire(ctx, reference)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementRedemptionConflicts()
			return dErrors.New(dErrors.CodeConflict, "code is already being redeemed")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not serialize redemption")
	}
	defer release()

	voucher, err := s.Lookup(ctx, reference)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "not a valid code")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.metrics.IncrementRedemptionConflicts()
		return dErrors.New(dErrors.CodeConflict, "code already redeemed")
	case err != nil:
		return err
	}

	matched, err := s.contractors.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "not a registered contractor")
		}
		return err
	}

	if _, err := s.store.Update(ctx, store.TableCodes, voucher.ID, map[string]any{
		store.FieldRedeemed:   true,
		store.FieldRedeemedBy: []string{matched.ID},
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, storeFailure(err))
	}

	s.logger.InfoContext(ctx, "voucher redeemed",
		"request_id", requestcontext.RequestID(ctx),
		"reference", reference,
		"contractor_id", matched.ID,
	)
	s.metrics.IncrementVouchersRedeemed()
	return nil
}

// storeFailure carries the store's own error text into the user-facing
// message; handlers frame it ("Failed to redeem QR code - <detail>").
func storeFailure(err error) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.Body
	}
	return "record store unavailable"
}
