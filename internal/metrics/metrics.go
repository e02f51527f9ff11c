package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"returnbox_back_end/internal/returns"
)

var (
	// Demandes de retour
	ReturnsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "returnbox_returns_submitted_total",
		Help: "Nombre de demandes de retour créées",
	})

	ReturnTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returnbox_return_transitions_total",
		Help: "Changements de statut des demandes de retour",
	}, []string{"status"})

	PickupsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "returnbox_pickups_scheduled_total",
		Help: "Enlèvements planifiés auprès du transporteur",
	})

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "returnbox_http_request_duration_seconds",
		Help:    "Durée des requêtes HTTP (secondes)",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route", "code"})
)

// Listener alimente les compteurs à partir des changements du service de retours
type Listener struct{}

func (Listener) ReturnChanged(_ context.Context, ch returns.Change) {
	switch ch.Kind {
	case returns.ChangeSubmitted:
		ReturnsSubmittedTotal.Inc()
	case returns.ChangePickupScheduled:
		PickupsScheduledTotal.Inc()
		ReturnTransitionsTotal.WithLabelValues(string(ch.Return.Status)).Inc()
	case returns.ChangeDecided, returns.ChangeCompleted:
		ReturnTransitionsTotal.WithLabelValues(string(ch.Return.Status)).Inc()
	}
}

// Middleware mesure la durée par route (le chemin déclaré, pas l'URL brute)
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
