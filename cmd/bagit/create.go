package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ndlib/bagger/bagit"
	"github.com/ndlib/bagger/digest"
	"github.com/ndlib/bagger/store"
)

type createOptions struct {
	algorithms []string
	processes  int
	zipStore   string
	tags       []string
	standard   map[string]*string // tag name to flag value
}

func newCreateCommand(root *rootOptions) *cobra.Command {
	o := &createOptions{standard: make(map[string]*string)}
	cmd := &cobra.Command{
		Use:   "create [flags] <source dir> <bag>",
		Short: "Copy a directory tree into a new bag",
		Long: `Create copies every file under the source directory into the payload of
a new bag. The source is not changed. The bag is written to a temporary
directory next to the destination and renamed into place once complete, so
it either exists completely or not at all.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&o.algorithms, "algorithm", "a", nil,
		"checksum algorithm, may be repeated ("+strings.Join(digest.Supported(), ", ")+")")
	f.IntVarP(&o.processes, "processes", "p", 1, "number of files to copy at once")
	f.StringVar(&o.zipStore, "zip-store", "", "save the bag as <bag>.zip in this directory")
	f.StringArrayVar(&o.tags, "tag", nil, `extra bag-info.txt tag as "Name: value", may be repeated`)
	for _, tag := range bagit.StandardTags {
		o.standard[tag] = f.String(strings.ToLower(tag), "", "value for the "+tag+" tag")
	}
	return cmd
}

func (o *createOptions) run(cmd *cobra.Command, root *rootOptions, src, dst string) error {
	c := root.conf
	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		c.Algorithms = o.algorithms
	}
	if flags.Changed("processes") {
		c.Processes = o.processes
	}

	info := c.info()
	for _, tag := range bagit.StandardTags {
		if flags.Changed(strings.ToLower(tag)) {
			info.Set(tag, *o.standard[tag])
		}
	}
	for _, s := range o.tags {
		m, err := parseTag(s)
		if err != nil {
			return err
		}
		info.Add(m.Name, m.Value)
	}

	b := bagit.NewBuilder()
	b.Algorithms = c.Algorithms
	b.Processes = c.Processes
	b.Log = root.log
	b.Stats = root.statsClient()
	defer root.reportStats()
	name := dst
	if o.zipStore != "" {
		b.Materializer = bagit.ZipMaterializer{Store: store.NewFileSystem(o.zipStore)}
		b.TempDir = o.zipStore
		name = filepath.Join(o.zipStore, bagit.ZipKey(dst))
	}
	bag, err := b.Create(cmd.Context(), src, dst, info)
	if err != nil {
		return err
	}
	ox, _, _ := bag.Oxum()
	fmt.Fprintf(cmd.OutOrStdout(), "created %s: %d files, %d bytes\n", name, ox.Files, ox.Bytes)
	return nil
}
