// Package metrics holds the Prometheus collectors of the bot. Each file
// enqueues its collectors from init(); MustRegister registers them once.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
