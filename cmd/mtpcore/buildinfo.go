package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtpscript/runtime/buildinfo"
	"github.com/mtpscript/runtime/snapshot"
)

func buildInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-info [snapshot.msqs]",
		Short: "print and verify the build-info record attached to a snapshot's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pubKeyB64, err := loadConfig()
			if err != nil {
				return err
			}
			pubRaw, err := decodePublicKey(pubKeyB64)
			if err != nil {
				return fmt.Errorf("decoding MTPCORE_PUBLIC_KEY: %w", err)
			}
			pub, err := parsePublicKey(pubRaw)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}
			snap, err := snapshot.Parse(raw, pub)
			if err != nil {
				return err
			}
			meta, err := snapshot.ParseMetadata(snap.Metadata)
			if err != nil {
				return err
			}

			info := meta.Build
			verifyErr := buildinfo.Verify(info, pub)
			fmt.Fprintf(cmd.OutOrStdout(), "build_id=%q timestamp=%q source_sha256=%q compiler_version=%q environment=%q signature_valid=%t\n",
				info.BuildID, info.Timestamp, info.SourceSHA256, info.CompilerVersion, info.EnvironmentTag, verifyErr == nil)
			return nil
		},
	}
	return cmd
}
