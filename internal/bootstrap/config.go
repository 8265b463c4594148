package bootstrap

import (
	"log"

	"github.com/go-orgauth/orgauth/internal/config"
)

// validateConfiguration validates all configuration settings
func validateConfiguration(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}
