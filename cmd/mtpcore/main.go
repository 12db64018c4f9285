// Command mtpcore is a thin exerciser over package runtime's
// run(snapshot, request, gas_limit) entry point: not a host adapter
// (Lambda/local HTTP server are out of scope, spec §1), a test harness
// a developer or CI job can point at a signed snapshot file from the
// command line.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{Use: "mtpcore"}
	root.AddCommand(runCmd())
	root.AddCommand(verifySnapshotCmd())
	root.AddCommand(buildInfoCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// parsePublicKey decodes an uncompressed SEC1 P-256 point (0x04 ‖ X ‖
// Y, 65 bytes) into an *ecdsa.PublicKey. No example repo in the pack
// carries a SEC1/PEM key-parsing library grounded in this curve (the
// pack's signing code is secp256k1/Ed25519); crypto/elliptic's own
// Unmarshal is the standard library's answer to exactly this problem
// and needs no third-party help.
func parsePublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()
	x, y := elliptic.Unmarshal(curve, raw)
	if x == nil {
		return nil, fmt.Errorf("malformed P-256 public key point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
