package sandbox

import (
	"time"

	"github.com/mtpscript/runtime/mtperr"
)

// Config is the host-side configuration whitelist of spec §6:
// gas_limit bounds live in the gas package; everything else a
// sandbox.Context needs to bootstrap lives here. Construction fails
// closed — NewConfig rejects an out-of-range value rather than
// silently clamping it.
type Config struct {
	MemoryBudgetBytes    int
	HTTPMaxRequestBytes  int
	HTTPMaxResponseBytes int
	HTTPTimeout          time.Duration
	DBPoolPerRequest     int32
	VerifyTLS            bool
	DatabaseDSN          string
}

// defaultMemoryBudgetBytes is spec §4.8's example heap size (8 MiB).
const defaultMemoryBudgetBytes = 8 * 1024 * 1024

// DefaultConfig returns the whitelist's documented defaults; callers
// override individual fields before passing the result to NewConfig.
func DefaultConfig() Config {
	return Config{
		MemoryBudgetBytes:    defaultMemoryBudgetBytes,
		HTTPMaxRequestBytes:  10 * 1024 * 1024,
		HTTPMaxResponseBytes: 50 * 1024 * 1024,
		HTTPTimeout:          30 * time.Second,
		DBPoolPerRequest:     16,
		VerifyTLS:            true,
	}
}

// NewConfig validates cfg against spec §6's whitelist and returns it
// unchanged on success.
func NewConfig(cfg Config) (Config, error) {
	if cfg.MemoryBudgetBytes <= 0 {
		return Config{}, mtperr.New(mtperr.Internal, "memory_budget_bytes must be positive, got %d", cfg.MemoryBudgetBytes)
	}
	if cfg.HTTPMaxRequestBytes <= 0 || cfg.HTTPMaxResponseBytes <= 0 {
		return Config{}, mtperr.New(mtperr.Internal, "http.max_* must be positive")
	}
	if cfg.DBPoolPerRequest <= 0 {
		return Config{}, mtperr.New(mtperr.Internal, "db.pool_per_request must be positive, got %d", cfg.DBPoolPerRequest)
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, mtperr.New(mtperr.Internal, "http timeout must be positive")
	}
	return cfg, nil
}
