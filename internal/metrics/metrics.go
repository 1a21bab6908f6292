// Package metrics holds the Prometheus collectors shared by the monitor,
// portal and notify packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnmwatch_poll_cycles_total",
			Help: "Completed poll cycles by result (ok, error).",
		},
		[]string{"result"},
	)
	Fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnmwatch_fetches_total",
			Help: "Network status fetches by result (ok, error).",
		},
		[]string{"result"},
	)
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnmwatch_logins_total",
			Help: "Portal login attempts by result (ok, error).",
		},
		[]string{"result"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnmwatch_notifications_total",
			Help: "Notifications by kind and delivery result.",
		},
		[]string{"kind", "result"},
	)
	NetworkOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cnmwatch_network_online",
			Help: "1 if the network's firewall reported online on the last poll, else 0.",
		},
		[]string{"network_id"},
	)
	PollInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnmwatch_poll_interval_seconds",
			Help: "Sleep chosen after the most recent cycle.",
		},
	)
)

func init() {
	prometheus.MustRegister(PollCycles, Fetches, Logins, Notifications, NetworkOnline, PollInterval)
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
