package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndlib/bagger/store"
)

func newListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <store dir> [prefix]",
		Short: "List the zipped bags in a store directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) > 1 {
				prefix = args[1]
			}
			keys, err := store.NewFileSystem(args[0]).ListPrefix(prefix)
			if err != nil {
				return err
			}
			root.log.WithField("count", len(keys)).Debugln("listed store")
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
