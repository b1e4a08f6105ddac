package main

import (
	"github.com/facebookgo/stats"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// errInvalid is returned when every bag was checked but some were invalid.
// The reports have already been printed.
var errInvalid = errors.New("one or more bags are invalid")

type rootOptions struct {
	configFile string
	logLevel   string
	stats      bool

	// set up before any subcommand runs
	conf     config
	log      *logrus.Logger
	counters *counters
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "bagit",
		Short:         "Create and validate BagIt bags",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "TOML file with default settings")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.stats, "stats", false, "log file, byte, and timing totals when done")

	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	return cmd
}

// setup loads the config file and configures logging and error reporting.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	c, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel = o.logLevel
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	o.log = logrus.StandardLogger()
	o.log.SetOutput(cmd.ErrOrStderr())
	o.log.SetLevel(level)
	if c.SentryDSN != "" {
		if err := raven.SetDSN(c.SentryDSN); err != nil {
			return errors.Wrap(err, "sentry_dsn")
		}
	}
	if cmd.Flags().Changed("stats") {
		c.Stats = o.stats
	}
	if c.Stats {
		o.counters = newCounters()
	}
	o.conf = c
	return nil
}

// statsClient returns the client the library should bump, or nil if stats
// are off.
func (o *rootOptions) statsClient() stats.Client {
	if o.counters == nil {
		return nil
	}
	return o.counters.client()
}

// reportStats logs the totals collected by the command, if any.
func (o *rootOptions) reportStats() {
	if o.counters != nil {
		o.counters.report(o.log)
	}
}
