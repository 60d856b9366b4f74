package main

import (
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/entrycache"
	"ctoidscan.dev/internal/logdir"
	"ctoidscan.dev/internal/matchpipeline"
)

func newFilterCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <log-url> <start> <end>",
		Short: "Scan already-downloaded cached entries for matching extension OIDs",
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

			matches, err := matchpipeline.Filter(ctx, cache, app.oids, uint64(start), uint64(end))
			var missing *matchpipeline.CacheMissing
			if errors.As(err, &missing) {
				app.logger.Warnf("halting sweep at uncached index %d", missing.Index)
			} else if err != nil {
				app.logger.WithError(err).Error("filter failed")
				return err
			}

			printMatches(cmd, matches)
			return nil
		},
	}

	return cmd
}

func printMatches(cmd *cobra.Command, matches []matchpipeline.Match) {
	for _, m := range matches {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", m.Index, pemEncode(m.CertOrTBS))
	}
}

func pemEncode(der []byte) string {
	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return string(pem.EncodeToMemory(block))
}
