// Package spmetrics exposes reactor observability as Prometheus
// collectors, following the corpus convention of a promauto-constructed
// metrics struct passed around as an explicit dependency rather than a
// package-global singleton the reactor would otherwise have to import.
package spmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the reactor updates. Construct one with
// New and thread it through as a Hooks implementation; the reactor package
// uses only the Hooks interface and NopHooks from this package, never
// these collectors.
type Metrics struct {
	RpcAttemptsTotal   *prometheus.CounterVec
	RpcCallDuration     *prometheus.HistogramVec
	RpcExhaustedTotal   prometheus.Counter
	SpBusyTotal         prometheus.Counter
	DiscoveryTotal      prometheus.Counter
	SerialConsoleBytes  *prometheus.CounterVec
	SerialConsoleDrops  prometheus.Counter
	HostPhase2Requests  prometheus.Counter
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RpcAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "rpc_attempts_total",
				Help:      "Total RPC attempts made to the SP, by request kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		RpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spgw",
				Name:      "rpc_call_duration_seconds",
				Help:      "End-to-end duration of an RPC call, across all attempts.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		RpcExhaustedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "rpc_exhausted_total",
				Help:      "RPC calls that exhausted their attempt budget without a usable response.",
			},
		),
		SpBusyTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "sp_busy_total",
				Help:      "SpError{Busy} responses absorbed via backoff without consuming attempt budget.",
			},
		),
		DiscoveryTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "discovery_total",
				Help:      "Successful Discover RPCs, including periodic re-discovery.",
			},
		),
		SerialConsoleBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "serial_console_bytes_total",
				Help:      "Serial console bytes moved, by direction.",
			},
			[]string{"direction"},
		),
		SerialConsoleDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "serial_console_drops_total",
				Help:      "Unsolicited console frames dropped because no receiver was attached or the forward channel was full.",
			},
		),
		HostPhase2Requests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "spgw",
				Name:      "host_phase2_requests_total",
				Help:      "Host phase-2 boot data requests relayed by the SP.",
			},
		),
	}
}

// Hooks is the observability seam the reactor package depends on, so it
// never imports prometheus directly. NopHooks is always safe to call, and
// reactor.New substitutes it when given a nil Hooks.
type Hooks interface {
	RpcAttempt(kind string, outcome string)
	RpcCallFinished(kind string, d time.Duration)
	RpcExhausted()
	SpBusy()
	Discovered()
	SerialConsoleBytes(direction string, n int)
	SerialConsoleDropped()
	HostPhase2Requested()
}

func (m *Metrics) RpcAttempt(kind, outcome string) { m.RpcAttemptsTotal.WithLabelValues(kind, outcome).Inc() }
func (m *Metrics) RpcCallFinished(kind string, d time.Duration) {
	m.RpcCallDuration.WithLabelValues(kind).Observe(d.Seconds())
}
func (m *Metrics) RpcExhausted()    { m.RpcExhaustedTotal.Inc() }
func (m *Metrics) SpBusy()          { m.SpBusyTotal.Inc() }
func (m *Metrics) Discovered()      { m.DiscoveryTotal.Inc() }
func (m *Metrics) SerialConsoleBytes(direction string, n int) {
	m.SerialConsoleBytes.WithLabelValues(direction).Add(float64(n))
}
func (m *Metrics) SerialConsoleDropped()   { m.SerialConsoleDrops.Inc() }
func (m *Metrics) HostPhase2Requested()    { m.HostPhase2Requests.Inc() }

// nopHooks implements Hooks with no-ops, for reactors run without metrics
// (e.g. unit tests).
type nopHooks struct{}

func (nopHooks) RpcAttempt(string, string)             {}
func (nopHooks) RpcCallFinished(string, time.Duration) {}
func (nopHooks) RpcExhausted()                         {}
func (nopHooks) SpBusy()                               {}
func (nopHooks) Discovered()                            {}
func (nopHooks) SerialConsoleBytes(string, int)         {}
func (nopHooks) SerialConsoleDropped()                  {}
func (nopHooks) HostPhase2Requested()                   {}

// NopHooks is a Hooks implementation that discards every event.
var NopHooks Hooks = nopHooks{}
