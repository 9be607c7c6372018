package voucher

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"vouchsafe/internal/artifact"
	"vouchsafe/internal/contractor"
	"vouchsafe/internal/store"
	"vouchsafe/internal/store/storetest"
	dErrors "vouchsafe/pkg/domain-errors"
	"vouchsafe/pkg/platform/sentinel"
	"vouchsafe/pkg/testutil"
)

const publicBaseURL = "http://127.0.0.1:8080"

type ServiceSuite struct {
	suite.Suite
	server    *storetest.Server
	artifacts *artifact.Store
	service   *Service
	ctx       context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.server = storetest.New(storetest.WithAutoNumber(store.TableCodes, store.FieldReference))
	client := store.NewClient(s.server.Config(), nil)

	artifacts, err := artifact.NewStore(filepath.Join(s.T().TempDir(), "qr_codes"))
	s.Require().NoError(err)
	s.artifacts = artifacts

	logger := testutil.DiscardLogger()
	contractors := contractor.NewService(client, logger, nil)
	s.service = NewService(client, contractors, artifacts, NewKeyedMutex(), logger, nil, publicBaseURL)
	s.ctx = context.Background()
}

func (s *ServiceSuite) TearDownTest() {
	s.server.Close()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedContractor(phone string) store.Record {
	return s.server.Seed(store.TableContractors, map[string]any{
		store.FieldName: "Ada", store.FieldPhone: phone,
	})
}

func (s *ServiceSuite) voucherRow(reference int64) store.Voucher {
	for _, rec := range s.server.Records(store.TableCodes) {
		voucher, err := store.VoucherFromRecord(rec)
		s.Require().NoError(err)
		if voucher.Reference == reference {
			return voucher
		}
	}
	s.FailNow("no voucher row with that reference")
	return store.Voucher{}
}

func (s *ServiceSuite) TestIssueRejectsInvalidAmounts() {
	_, err := s.service.Issue(s.ctx, "-1")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Issue(s.ctx, "not-a-number")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Empty(s.server.Records(store.TableCodes), "invalid amounts must not create rows")
}

func (s *ServiceSuite) TestIssueZeroAmountIsValid() {
	issued, err := s.service.Issue(s.ctx, "0")
	s.Require().NoError(err)
	s.Equal(int64(1), issued.Reference)

	png, err := s.artifacts.Open("qr_1.png")
	s.Require().NoError(err)
	s.NotEmpty(png)
}

func (s *ServiceSuite) TestIssueEncodesRedemptionURL() {
	issued, err := s.service.Issue(s.ctx, "42.50")
	s.Require().NoError(err)
	s.Equal(publicBaseURL+"/redeem-qr/1", issued.RedeemURL)
	s.Equal(filepath.Join(s.artifacts.Root(), "qr_1.png"), issued.ImagePath)

	row := s.voucherRow(1)
	s.Equal(42.5, row.Amount)
	s.False(row.Redeemed)

	png, err := s.artifacts.Open("qr_1.png")
	s.Require().NoError(err)
	s.True(bytes.HasPrefix(png, []byte("\x89PNG")), "artifact must be a PNG image")
}

func (s *ServiceSuite) TestIssueStoreFailure() {
	s.server.FailNext(http.StatusServiceUnavailable, `{"error":"MAINTENANCE"}`)

	_, err := s.service.Issue(s.ctx, "10")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Contains(dErrors.Message(err), "MAINTENANCE")
}

func (s *ServiceSuite) TestLookupDistinguishesMissingFromRedeemed() {
	_, err := s.service.Lookup(s.ctx, 999999)
	s.ErrorIs(err, sentinel.ErrNotFound)

	issued, err := s.service.Issue(s.ctx, "5")
	s.Require().NoError(err)

	_, err = s.service.Lookup(s.ctx, issued.Reference)
	s.Require().NoError(err)

	s.seedContractor("0700000001")
	s.Require().NoError(s.service.Redeem(s.ctx, issued.Reference, "0700000001"))

	_, err = s.service.Lookup(s.ctx, issued.Reference)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *ServiceSuite) TestRedeemUnknownReference() {
	err := s.service.Redeem(s.ctx, 999999, "0700000001")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRedeemUnregisteredContractorLeavesVoucherIssued() {
	issued, err := s.service.Issue(s.ctx, "5")
	s.Require().NoError(err)

	err = s.service.Redeem(s.ctx, issued.Reference, "0799999999")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.False(s.voucherRow(issued.Reference).Redeemed)
}

func (s *ServiceSuite) TestRedeemExactlyOnce() {
	issued, err := s.service.Issue(s.ctx, "5")
	s.Require().NoError(err)
	matched := s.seedContractor("0700000001")

	s.Require().NoError(s.service.Redeem(s.ctx, issued.Reference, "0700000001"))

	row := s.voucherRow(issued.Reference)
	s.True(row.Redeemed)
	s.Equal(matched.ID, row.RedeemedBy)

	// Second attempt observes the terminal state.
	err = s.service.Redeem(s.ctx, issued.Reference, "0700000001")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestConcurrentRedemptionsExactlyOneWins() {
	issued, err := s.service.Issue(s.ctx, "5")
	s.Require().NoError(err)
	s.seedContractor("0700000001")
	s.seedContractor("0700000002")

	outcomes := make([]error, 2)
	var g errgroup.Group
	for i, phone := range []string{"0700000001", "0700000002"} {
		g.Go(func() error {
			outcomes[i] = s.service.Redeem(s.ctx, issued.Reference, phone)
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var successes, conflicts int
	for _, err := range outcomes {
		switch {
		case err == nil:
			successes++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicts++
		default:
			s.Failf("unexpected outcome", "got %v", err)
		}
	}
	s.Equal(1, successes, "exactly one redemption must commit")
	s.Equal(1, conflicts, "the loser must observe a terminal failure")
	s.True(s.voucherRow(issued.Reference).Redeemed)
}

func (s *ServiceSuite) TestRedeemStoreFailureIsTerminal() {
	issued, err := s.service.Issue(s.ctx, "5")
	s.Require().NoError(err)
	s.seedContractor("0700000001")

	// Any store failure inside Redeem is terminal for the request.
	s.server.FailNext(http.StatusBadGateway, `{"error":"WRITE_REJECTED"}`)

	err = s.service.Redeem(s.ctx, issued.Reference, "0700000001")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
