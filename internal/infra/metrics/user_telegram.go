package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		userUpsertsTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		telegramPollErrorsTotal,
	)
}

// Upsert statuses.
const (
	UpsertOK         = "ok"
	UpsertFailed     = "failed"
	UpsertConstraint = "constraint"
	UpsertDropped    = "dropped"
	UpsertSkipped    = "skipped"
)

var (
	userUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_upserts_total",
			Help: "Background user profile upserts by outcome.",
		},
		[]string{"status"},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming commands from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramPollErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_poll_errors_total",
			Help: "Failed getUpdates calls, excluding conflicts.",
		},
	)
)

func IncUserUpsert(status string) {
	userUpsertsTotal.WithLabelValues(norm(status)).Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncPollError() {
	telegramPollErrorsTotal.Inc()
}
