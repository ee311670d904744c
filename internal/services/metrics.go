package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookUnmatched counts provider callbacks whose CallSid matched no record.
	webhookUnmatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrouter_webhook_unmatched_total",
			Help: "Provider callbacks that matched no call record, by hook.",
		},
		[]string{"hook"},
	)

	// callsRouted counts extension-entry outcomes.
	callsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrouter_calls_routed_total",
			Help: "Extension entries by outcome (connected, replayed, unknown_extension, missing_digits).",
		},
		[]string{"outcome"},
	)
)

// Hook labels for webhookUnmatched.
const (
	HookRecording = "recording"
	HookStatus    = "status"
)

func init() {
	prometheus.MustRegister(webhookUnmatched, callsRouted)
}
