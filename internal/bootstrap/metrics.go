package bootstrap

import (
	"log"

	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/metrics"
)

// initializeMetrics sets up the metrics recorder
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Printf("Prometheus metrics recording enabled")
	}
	return recorder
}
