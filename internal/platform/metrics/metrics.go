package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ContractorsRegistered prometheus.Counter
	VouchersIssued        prometheus.Counter
	VouchersRedeemed      prometheus.Counter
	RedemptionConflicts   prometheus.Counter
	StoreCallDuration     *prometheus.HistogramVec
}

// New creates metrics registered on a private registerer so tests can build
// multiple instances without duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContractorsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "vouchsafe_contractors_registered_total",
			Help: "Total number of contractors registered",
		}),
		VouchersIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "vouchsafe_vouchers_issued_total",
			Help: "Total number of vouchers issued",
		}),
		VouchersRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "vouchsafe_vouchers_redeemed_total",
			Help: "Total number of vouchers redeemed",
		}),
		RedemptionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "vouchsafe_redemption_conflicts_total",
			Help: "Redemption attempts that lost the per-reference race or hit an already redeemed voucher",
		}),
		StoreCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vouchsafe_store_call_seconds",
			Help:    "Latency of record store HTTP calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "table"}),
	}
}

// IncrementContractorsRegistered increments the contractor counter by 1.
func (m *Metrics) IncrementContractorsRegistered() {
	if m != nil {
		m.ContractorsRegistered.Inc()
	}
}

// IncrementVouchersIssued increments the issued counter by 1.
func (m *Metrics) IncrementVouchersIssued() {
	if m != nil {
		m.VouchersIssued.Inc()
	}
}

// IncrementVouchersRedeemed increments the redeemed counter by 1.
func (m *Metrics) IncrementVouchersRedeemed() {
	if m != nil {
		m.VouchersRedeemed.Inc()
	}
}

// IncrementRedemptionConflicts increments the conflict counter by 1.
func (m *Metrics) IncrementRedemptionConflicts() {
	if m != nil {
		m.RedemptionConflicts.Inc()
	}
}

// ObserveStoreCall records one record-store round trip.
func (m *Metrics) ObserveStoreCall(operation, table string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreCallDuration.WithLabelValues(operation, table).Observe(d.Seconds())
}
