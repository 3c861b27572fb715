// Package metrics registers the tour's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PerceptionY = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tour_perception_y_position",
		Help: "1 for the current Y position band, 0 otherwise",
	}, []string{"position"})

	PerceptionX = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tour_perception_x_position",
		Help: "1 for the current X position, 0 otherwise",
	}, []string{"position"})

	MotionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_perception_motion_total",
		Help: "Motion classifications other than NOWHERE",
	}, []string{"axis", "motion"})

	InterruptsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_interrupts_triggered_total",
		Help: "Interrupt latches set, by reason",
	}, []string{"reason"})

	InterruptPause = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tour_interrupt_pause_seconds",
		Help:    "Time the tour stayed latched by an interrupt",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	InterruptLatched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tour_interrupt_latched",
		Help: "1 while the interrupt latch is set",
	})

	Repeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_repeats_total",
		Help: "Sentences or navigations re-issued after an interrupt",
	}, []string{"kind"})

	NarrationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tour_narrations_dropped_total",
		Help: "Fire-and-forget narrations dropped because one was in flight",
	})

	Navigation = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tour_navigation_seconds",
		Help:    "Time from first go-to command to arrival",
		Buckets: prometheus.ExponentialBuckets(1, 1.8, 10),
	}, []string{"location"})

	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_command_errors_total",
		Help: "Robot commands that failed to send",
	}, []string{"command"})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_stage_transitions_total",
		Help: "Tour stages entered",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tour_stage_seconds",
		Help:    "Wall time spent in each stage body",
		Buckets: prometheus.ExponentialBuckets(5, 1.8, 10),
	}, []string{"stage"})

	DialogReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_dialog_replies_total",
		Help: "Listened replies by classification",
	}, []string{"class"})

	BridgeConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tour_bridge_connected",
		Help: "1 while the robot bridge WebSocket is connected",
	})

	BridgeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_bridge_events_total",
		Help: "Events received from the robot bridge",
	}, []string{"type"})

	FollowTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_follow_turns_total",
		Help: "Turns issued by constrained follow, by reason",
	}, []string{"reason"})

	JournalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_journal_errors_total",
		Help: "Journal writes that failed",
	}, []string{"op"})

	DisplayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tour_display_clients",
		Help: "WebSocket clients subscribed to status and display updates",
	})

	ChatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tour_chat_latency_ms",
		Help:    "Chat completion latency",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})
)

// SetOneHot sets label to 1 and every other label in all to 0.
func SetOneHot(g *prometheus.GaugeVec, all []string, label string) {
	for _, l := range all {
		v := 0.0
		if l == label {
			v = 1
		}
		g.WithLabelValues(l).Set(v)
	}
}
