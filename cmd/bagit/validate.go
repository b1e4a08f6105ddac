package main

import (
	"context"
	"path/filepath"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/spf13/cobra"

	"github.com/ndlib/bagger/bagit"
	"github.com/ndlib/bagger/store"
)

type validateOptions struct {
	fast           bool
	processes      int
	bytesPerSecond float64
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	o := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [--fast] <bag>...",
		Short: "Check bags against their manifests",
		Long: `Validate checks each bag, a directory or a .zip file, and prints every
problem found. A full validation recomputes every checksum. A fast one only
compares the Payload-Oxum against the number and size of the payload files.
The exit status is 1 if any bag is invalid or could not be checked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root, args)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.fast, "fast", false, "only compare the Payload-Oxum")
	f.IntVarP(&o.processes, "processes", "p", 1, "number of files to checksum at once")
	f.Float64Var(&o.bytesPerSecond, "bytes-per-second", 0, "limit on the read rate, 0 for none")
	return cmd
}

func (o *validateOptions) run(cmd *cobra.Command, root *rootOptions, bags []string) error {
	v := &bagit.Validator{
		Processes:      root.conf.Processes,
		Fast:           o.fast,
		BytesPerSecond: root.conf.BytesPerSecond,
		Stats:          root.statsClient(),
	}
	defer root.reportStats()
	if cmd.Flags().Changed("processes") {
		v.Processes = o.processes
	}
	if cmd.Flags().Changed("bytes-per-second") {
		v.BytesPerSecond = o.bytesPerSecond
	}

	out := cmd.OutOrStdout()
	failed := false
	for _, name := range bags {
		log := root.log.WithField("bag", name)
		one := *v
		one.Log = log
		result, err := validateOne(cmd.Context(), &one, name)
		if err != nil {
			log.WithError(err).Errorln("could not validate")
			raven.CaptureError(err, map[string]string{"bag": name})
			failed = true
			continue
		}
		if err := result.Report(out, name, bagit.DefaultMessages); err != nil {
			return err
		}
		if !result.Valid() {
			failed = true
		}
	}
	if failed {
		return errInvalid
	}
	return nil
}

// validateOne checks a bag directory, or a zipped bag if the name ends in
// ".zip".
func validateOne(ctx context.Context, v *bagit.Validator, name string) (*bagit.Result, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		return v.ValidateDir(ctx, name)
	}
	fsys, closer, err := bagit.OpenZip(store.NewFileSystem(filepath.Dir(name)), filepath.Base(name))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return v.Validate(ctx, fsys)
}
