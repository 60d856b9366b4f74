package main

import (
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/derext"
)

func newListExtCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list-ext <pem-file>",
		Short: "List the extension OIDs of a local PEM certificate, in DER order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			block, _ := pem.Decode(data)
			if block == nil {
				return fmt.Errorf("%s does not contain a PEM block", path)
			}

			oids, err := derext.ExtractFromCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("%s PEM-decoded but its DER could not be parsed: %w", path, err)
			}

			for _, oid := range oids {
				fmt.Fprintln(cmd.OutOrStdout(), oid.String())
			}
			return nil
		},
	}
}
