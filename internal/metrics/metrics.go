// Package metrics exposes the Prometheus counters and gauges named by spec
// section 7 ("error counters are exposed via the metrics interface") and
// section 2 (the per-UE scheduler metrics aggregator), grounded on
// marmos91-dittofs's per-subsystem metrics.go files: one struct per
// subsystem, nil-safe methods, registerOrReuse so re-registration on cell
// restart doesn't panic.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// registerOrReuse registers c with reg, returning the existing collector if
// c was already registered (e.g. a cell torn down and rebuilt in-process).
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// Scheduler holds the per-cell scheduler metrics: grant counts, failed
// attempts by reason, and resource-grid utilization.
type Scheduler struct {
	grants          *prometheus.CounterVec
	failedAttempts  *prometheus.CounterVec
	prbUtilization  *prometheus.GaugeVec
	harqTimeouts    *prometheus.CounterVec
	trappedHARQs    prometheus.Counter
	invariantErrors *prometheus.CounterVec
}

// NewScheduler constructs and (if reg is non-nil) registers scheduler
// metrics.
func NewScheduler(reg prometheus.Registerer) *Scheduler {
	m := &Scheduler{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "sched",
			Name:      "grants_total",
			Help:      "Total number of grants emitted, labeled by channel (pdsch/pusch) and kind (newtx/retx/common)",
		}, []string{"channel", "kind"}),
		failedAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "sched",
			Name:      "failed_attempts_total",
			Help:      "Total number of grant attempts recorded as failed_attempts, labeled by reason",
		}, []string{"reason"}),
		prbUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gnb_mac",
			Subsystem: "grid",
			Name:      "prb_utilization_ratio",
			Help:      "Fraction of PRBs used in the most recent slot, per BWP",
		}, []string{"bwp"}),
		harqTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "harq",
			Name:      "ack_timeouts_total",
			Help:      "Total number of HARQ ack-timeout wheel expiries, labeled by direction",
		}, []string{"direction"}),
		trappedHARQs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "harq",
			Name:      "trapped_total",
			Help:      "Total number of HARQ processes force-discarded by the trapped-HARQ sweep",
		}),
		invariantErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "sched",
			Name:      "invariant_errors_total",
			Help:      "Total number of discarded invariant-violation events, labeled by kind",
		}, []string{"kind"}),
	}
	m.grants = registerOrReuse(reg, m.grants).(*prometheus.CounterVec)
	m.failedAttempts = registerOrReuse(reg, m.failedAttempts).(*prometheus.CounterVec)
	m.prbUtilization = registerOrReuse(reg, m.prbUtilization).(*prometheus.GaugeVec)
	m.harqTimeouts = registerOrReuse(reg, m.harqTimeouts).(*prometheus.CounterVec)
	m.trappedHARQs = registerOrReuse(reg, m.trappedHARQs).(prometheus.Counter)
	m.invariantErrors = registerOrReuse(reg, m.invariantErrors).(*prometheus.CounterVec)
	return m
}

func (m *Scheduler) RecordGrant(channel, kind string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(channel, kind).Inc()
}

func (m *Scheduler) RecordFailedAttempt(reason string) {
	if m == nil {
		return
	}
	m.failedAttempts.WithLabelValues(reason).Inc()
}

func (m *Scheduler) SetPRBUtilization(bwp string, ratio float64) {
	if m == nil {
		return
	}
	m.prbUtilization.WithLabelValues(bwp).Set(ratio)
}

func (m *Scheduler) RecordHARQTimeout(direction string) {
	if m == nil {
		return
	}
	m.harqTimeouts.WithLabelValues(direction).Inc()
}

func (m *Scheduler) RecordTrappedHARQ() {
	if m == nil {
		return
	}
	m.trappedHARQs.Inc()
}

func (m *Scheduler) RecordInvariantError(kind string) {
	if m == nil {
		return
	}
	m.invariantErrors.WithLabelValues(kind).Inc()
}

// RLC holds per-bearer RLC metrics: dropped PDUs, discard failures,
// max-retx events, and a buffer occupancy gauge.
type RLC struct {
	droppedPDUs    *prometheus.CounterVec
	discardFailure prometheus.Counter
	maxRetx        *prometheus.CounterVec
	bufferBytes    *prometheus.GaugeVec
}

// NewRLC constructs and (if reg is non-nil) registers RLC metrics.
func NewRLC(reg prometheus.Registerer) *RLC {
	m := &RLC{
		droppedPDUs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "rlc",
			Name:      "dropped_pdus_total",
			Help:      "Total number of PDUs dropped, labeled by mode and reason",
		}, []string{"mode", "reason"}),
		discardFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "rlc",
			Name:      "tm_discard_failures_total",
			Help:      "Total number of discard attempts against a TM entity (discard unsupported)",
		}),
		maxRetx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnb_mac",
			Subsystem: "rlc",
			Name:      "am_max_retx_total",
			Help:      "Total number of SDUs reaching max_retx_thresh, labeled by bearer",
		}, []string{"bearer"}),
		bufferBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gnb_mac",
			Subsystem: "rlc",
			Name:      "tx_buffer_bytes",
			Help:      "Current TX buffer occupancy in bytes, labeled by bearer",
		}, []string{"bearer"}),
	}
	m.droppedPDUs = registerOrReuse(reg, m.droppedPDUs).(*prometheus.CounterVec)
	m.discardFailure = registerOrReuse(reg, m.discardFailure).(prometheus.Counter)
	m.maxRetx = registerOrReuse(reg, m.maxRetx).(*prometheus.CounterVec)
	m.bufferBytes = registerOrReuse(reg, m.bufferBytes).(*prometheus.GaugeVec)
	return m
}

func (m *RLC) RecordDroppedPDU(mode, reason string) {
	if m == nil {
		return
	}
	m.droppedPDUs.WithLabelValues(mode, reason).Inc()
}

func (m *RLC) RecordDiscardFailure() {
	if m == nil {
		return
	}
	m.discardFailure.Inc()
}

func (m *RLC) RecordMaxRetx(bearer string) {
	if m == nil {
		return
	}
	m.maxRetx.WithLabelValues(bearer).Inc()
}

func (m *RLC) SetBufferBytes(bearer string, bytes float64) {
	if m == nil {
		return
	}
	m.bufferBytes.WithLabelValues(bearer).Set(bytes)
}
