package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ctoidscan.dev/internal/ctlog"
	"ctoidscan.dev/internal/ctoid"
	"ctoidscan.dev/internal/logdir"
)

// appContext carries the flags and collaborators every subcommand needs,
// built once in the root command's PersistentPreRunE and passed down
// explicitly rather than through package-level globals.
type appContext struct {
	dbDir        string
	directoryURL string
	oids         *ctoid.Set
	logger       *logrus.Logger
	client       *http.Client

	logLevel string
}

func newRootCmd() *cobra.Command {
	app := &appContext{}

	root := &cobra.Command{
		Use:           "ctoidscan",
		Short:         "Scan Certificate Transparency logs for certificates with interesting extension OIDs",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(app.logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", app.logLevel, err)
			}
			app.logger = logrus.New()
			app.logger.SetLevel(level)

			app.client = ctlog.NewInstrumentedClient(ctlog.DefaultUserAgent)

			oidFlags, err := cmd.Flags().GetStringArray("oid")
			if err != nil {
				return err
			}
			app.oids = ctoid.NewSet(ctoid.OIDNameConstraints)
			for _, s := range oidFlags {
				oid, err := ctoid.Parse(s)
				if err != nil {
					return fmt.Errorf("invalid --oid %q: %w", s, err)
				}
				app.oids.Add(oid)
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&app.dbDir, "db-dir", "db", "Directory holding per-log entry cache files")
	root.PersistentFlags().StringVar(&app.directoryURL, "log-directory-url", logdir.AllLogsURL, "CT log directory JSON URL (defaults to the all-logs list; pass the trusted-logs list URL for operator-vetted logs only)")
	root.PersistentFlags().StringArray("oid", nil, "Additional dotted-decimal OID to treat as interesting (repeatable)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")

	root.AddCommand(newListExtCmd(app))
	root.AddCommand(newDlCmd(app))
	root.AddCommand(newFilterCmd(app))
	root.AddCommand(newScanCmd(app))
	root.AddCommand(newLiveStreamCmd(app))

	return root
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, generalizing
// the teacher's signal.Notify-plus-cleanup-goroutine idiom from "release
// the Consul lock" to "cancel the in-flight download/filter/scan loop".
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
