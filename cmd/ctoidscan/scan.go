package main

import (
	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/matchpipeline"
)

func newScanCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <log-url> <start> <end>",
		Short: "Download and filter a range of entries in one pass, without caching them",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logURL := args[0]
			start, end, err := parseRange(args[1], args[2])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			matches, err := matchpipeline.Scan(ctx, app.client, app.directoryURL, logURL, app.oids, start, end)
			if err != nil {
				app.logger.WithError(err).Error("scan failed")
				return err
			}

			printMatches(cmd, matches)
			return nil
		},
	}

	return cmd
}
