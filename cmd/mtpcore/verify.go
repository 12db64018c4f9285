package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtpscript/runtime/snapshot"
)

func verifySnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-snapshot [snapshot.msqs]",
		Short: "parse and signature-verify a .msqs file without executing it",
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
			fmt.Fprintf(cmd.OutOrStdout(), "signature valid, snap_hash=%x entry_point=%q program_bytes=%d declared_effects=%v\n",
				snap.Hash(), meta.EntryPointName, len(snap.Program), meta.DeclaredEffects)
			return nil
		},
	}
	return cmd
}
