package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mtpscript/runtime/sandbox"
)

// loadConfig reads an optional .env file (dev convenience only, never
// required in production) and then the host settings this CLI exposes
// (MTPCORE_VERIFY_TLS, MTPCORE_DB_DSN, MTPCORE_HTTP_TIMEOUT_SECONDS,
// MTPCORE_PUBLIC_KEY) straight out of the process environment, on top
// of sandbox.DefaultConfig, the same two-step
// godotenv.Load-then-os.Getenv shape walletserver/config.Load uses.
func loadConfig() (sandbox.Config, string, error) {
	_ = godotenv.Load() // no .env file present is not an error

	cfg := sandbox.DefaultConfig()
	if v := os.Getenv("MTPCORE_VERIFY_TLS"); v == "false" {
		cfg.VerifyTLS = false
	}
	if v := os.Getenv("MTPCORE_DB_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("MTPCORE_HTTP_TIMEOUT_SECONDS"); v != "" {
		var secs int
		if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
			cfg.HTTPTimeout = time.Duration(secs) * time.Second
		}
	}

	pubKeyB64 := os.Getenv("MTPCORE_PUBLIC_KEY")
	if pubKeyB64 == "" {
		return cfg, "", fmt.Errorf("MTPCORE_PUBLIC_KEY is required (base64 SEC1 P-256 public key)")
	}
	return cfg, pubKeyB64, nil
}

func decodePublicKey(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}
