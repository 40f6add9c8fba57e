package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpdatesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_updates_accepted_total",
		Help: "Location updates that passed validation",
	})
	UpdatesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_updates_rejected_total",
		Help: "Location updates rejected by validation",
	})
	EnvelopesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_envelopes_published_total",
		Help: "Envelopes published to the relay by topic",
	}, []string{"topic"})
	EventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_events_routed_total",
		Help: "Events emitted to local rooms by event name",
	}, []string{"event"})
	RoutingAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_routing_anomalies_total",
		Help: "Relayed payloads dropped as unparseable",
	})
	StaleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_stale_envelopes_dropped_total",
		Help: "Location envelopes dropped as older than the last emitted one",
	})
	RelayReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_relay_reconnects_total",
		Help: "Successful broker reconnects",
	})
	PushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_push_sent_total",
		Help: "Push messages with an ok submit ticket",
	})
	PushInvalidTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_push_invalid_tokens_total",
		Help: "Push tokens rejected by the grammar check",
	})
	PushChunkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolride_push_chunk_failures_total",
		Help: "Push chunks whose submission failed as a whole",
	})
	PushReceipts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_push_receipts_total",
		Help: "Push receipts by outcome",
	}, []string{"outcome"})
)

// Serve exposes /metrics and /healthz on the given port. Blocks; run in
// a goroutine.
func Serve(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return http.ListenAndServe(":"+port, mux)
}
