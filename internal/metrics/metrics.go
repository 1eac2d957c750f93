// Package metrics exposes Prometheus counters for imports, invitation
// batches and operator commands, and serves them over HTTP.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Invitation outcomes.
const (
	OutcomeInvited = "invited"
	OutcomeRefused = "refused"
	OutcomeDeleted = "deleted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	once sync.Once

	invitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_invites_total",
			Help: "Per-candidate invitation outcomes.",
		},
		[]string{"outcome"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_invite_batches_total",
			Help: "Invitation batches by how they ended.",
		},
		[]string{"result"},
	)

	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_imported_users_total",
			Help: "Imported participants by insert result.",
		},
		[]string{"result"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_commands_total",
			Help: "Operator commands by authorization status.",
		},
		[]string{"command", "status"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(invitesTotal, batchesTotal, importsTotal, commandsTotal)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncInvite(outcome string) {
	invitesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncBatch(result string) {
	batchesTotal.WithLabelValues(norm(result)).Inc()
}

func IncImport(result string) {
	importsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCommand(command, status string) {
	commandsTotal.WithLabelValues(norm(command), norm(status)).Inc()
}
