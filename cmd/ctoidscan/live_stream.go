package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/ctlive"
	"ctoidscan.dev/internal/matchpipeline"
)

func newLiveStreamCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "live-stream <log-url>",
		Short: "Tail a CT log for newly sequenced leaves and report matching extension OIDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			tail, err := newUnimplementedTailClient(args[0])
			if err != nil {
				return err
			}

			onMatch := func(m matchpipeline.LiveMatch) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", pemEncode(m.LeafDER))
			}
			onProgress := func(count int64) {
				app.logger.Infof("Reached %d many certs", count)
			}

			err = matchpipeline.LiveStream(ctx, tail, app.oids, onMatch, onProgress)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

// newUnimplementedTailClient reports that this build does not ship a
// concrete STH-verifying tail client: spec.md treats the live-tail
// collaborator as an external black box assumed available, and
// ctlive.Client is the seam a real implementation plugs into. Wiring one
// up is out of scope for this repo.
func newUnimplementedTailClient(logURL string) (ctlive.Client, error) {
	return nil, fmt.Errorf("live-stream: no ctlive.Client implementation is wired up for %s; provide one via ctlive.Client", logURL)
}
