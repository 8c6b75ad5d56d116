package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GRDPolls counts middleware poll passes.
	GRDPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grdmonitor_grd_polls_total",
		Help: "GRD middleware poll iterations.",
	})

	// GRDStateChanges counts persisted connected/disconnected transitions.
	GRDStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grdmonitor_grd_state_changes_total",
		Help: "GRD connectivity state changes written to history.",
	})

	// ConnectedPercentage is the latest global connectivity percentage.
	ConnectedPercentage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grdmonitor_connected_percentage",
		Help: "Percentage of non-placeholder GRDs currently connected.",
	})

	// RelayScans counts per-relay fault window scans.
	RelayScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grdmonitor_relay_scans_total",
		Help: "Relay fault window scan passes.",
	})

	// RelayDecodeFailures counts malformed fault blocks.
	RelayDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grdmonitor_relay_decode_failures_total",
		Help: "Fault blocks rejected by the decoder.",
	})

	// RelayFaultsStored counts newly persisted fault records.
	RelayFaultsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grdmonitor_relay_faults_stored_total",
		Help: "New relay fault records written to the store.",
	})

	// AlarmsFired counts dispatched alarms by category.
	AlarmsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grdmonitor_alarms_fired_total",
		Help: "Sustained alarms that reached the notification dispatcher.",
	}, []string{"category"})

	// MailAccepted counts mail-queue accept/reject outcomes.
	MailAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grdmonitor_mail_requests_total",
		Help: "Mail enqueue requests by outcome.",
	}, []string{"outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
