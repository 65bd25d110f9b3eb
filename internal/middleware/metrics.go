package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	metricsOnce sync.Once
	prom        *fiberprometheus.FiberPrometheus
)

// InitMetrics registers the HTTP metrics collector and the /metrics route on app.
// The collector is created once per process so repeated server construction in tests does not
// register duplicate collectors.
func InitMetrics(app *fiber.App) {
	metricsOnce.Do(func() {
		prom = fiberprometheus.New("forum-api")
	})
	prom.RegisterAt(app, "/metrics")
}

// MetricsMiddleware records request count and latency. InitMetrics must run first.
func MetricsMiddleware() fiber.Handler {
	if prom == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return prom.Middleware
}
