package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/entrycache"
	"ctoidscan.dev/internal/logdir"
	"ctoidscan.dev/internal/matchpipeline"
)

func newDlCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dl <log-url> <start> <end>",
		Short: "Download a range of entries from a CT log into the local cache",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logURL := args[0]
			start, end, err := parseRange(args[1], args[2])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			_, logID, err := logdir.Resolve(ctx, app.client, app.directoryURL, logURL)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", logURL, err)
			}

			cache, err := entrycache.Open(app.dbDir, logID)
			if err != nil {
				return fmt.Errorf("opening entry cache: %w", err)
			}
			defer cache.Close()

			if err := matchpipeline.Download(ctx, app.client, app.directoryURL, logURL, start, end, cache); err != nil {
				app.logger.WithError(err).Error("download failed")
				return err
			}

			app.logger.Infof("downloaded entries [%d,%d] from %s", start, end, logURL)
			return nil
		},
	}

	return cmd
}

// parseRange parses the positional <start> <end> arguments shared by dl,
// filter, and scan.
func parseRange(startArg, endArg string) (start, end int64, err error) {
	start, err = strconv.ParseInt(startArg, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("invalid start index %q: must be a non-negative integer", startArg)
	}
	end, err = strconv.ParseInt(endArg, 10, 64)
	if err != nil || end < 0 {
		return 0, 0, fmt.Errorf("invalid end index %q: must be a non-negative integer", endArg)
	}
	return start, end, nil
}
