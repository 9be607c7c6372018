package httptransport_test

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouchsafe/internal/artifact"
	"vouchsafe/internal/contractor"
	contractorHandler "vouchsafe/internal/contractor/handler"
	"vouchsafe/internal/store"
	"vouchsafe/internal/store/storetest"
	httptransport "vouchsafe/internal/transport/http"
	"vouchsafe/internal/voucher"
	voucherHandler "vouchsafe/internal/voucher/handler"
	"vouchsafe/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	server := storetest.New(storetest.WithAutoNumber(store.TableCodes, store.FieldReference))
	t.Cleanup(server.Close)

	artifacts, err := artifact.NewStore(filepath.Join(t.TempDir(), "qr_codes"))
	require.NoError(t, err)

	logger := testutil.DiscardLogger()
	client := store.NewClient(server.Config(), nil)
	contractors := contractor.NewService(client, logger, nil)
	vouchers := voucher.NewService(client, contractors, artifacts, voucher.NewKeyedMutex(),
		logger, nil, "http://127.0.0.1:8080")

	return httptransport.NewRouter(logger,
		contractorHandler.New(contractors, logger),
		voucherHandler.New(vouchers, artifacts, logger),
	)
}

func TestHealthz(t *testing.T) {
	router := newRouter(t)

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	router := newRouter(t)

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesAreWired(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/register-contractor", "/create-qr"} {
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newRouter(t)

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
