package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtpscript/runtime/gas"
	"github.com/mtpscript/runtime/reqres"
	"github.com/mtpscript/runtime/runtime"
)

func runCmd() *cobra.Command {
	var gasLimit uint64
	var reqID, accID, version string

	cmd := &cobra.Command{
		Use:   "run [snapshot.msqs]",
		Short: "execute a signed snapshot's entry point against an empty request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pubKeyB64, err := loadConfig()
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

			snapBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}

			core, err := runtime.New(cfg, pub, nil, newLogger())
			if err != nil {
				return err
			}

			req := reqres.Request{
				Method: reqres.GET,
				Path:   "/",
				Headers: reqres.Headers{
					{Name: reqres.HeaderRequestID, Value: reqID},
					{Name: reqres.HeaderAccountID, Value: accID},
					{Name: reqres.HeaderVersion, Value: version},
				},
			}

			result, err := core.Run(snapBytes, req, gasLimit)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "status=%d gas_used=%d sha256=%x\n", result.StatusCode(), result.GasUsed, result.ResponseSHA256)
			fmt.Fprintln(cmd.OutOrStdout(), string(result.ResponseBytes))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", gas.MaxLimit/1000, "gas budget for this run")
	cmd.Flags().StringVar(&reqID, "req-id", "", "request id promoted into the seed")
	cmd.Flags().StringVar(&accID, "account-id", "", "account id promoted into the seed")
	cmd.Flags().StringVar(&version, "caller-version", "", "caller version promoted into the seed")
	return cmd
}
