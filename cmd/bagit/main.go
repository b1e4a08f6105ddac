// Command bagit creates and validates BagIt bags.
//
//	bagit create [flags] <source dir> <bag>
//	bagit validate [--fast] <bag>...
//	bagit list <store dir> [prefix]
//
// A bag given to validate is either a directory or a zip file, such as one
// written by "bagit create --zip-store". Settings may also be given in a TOML
// file named with --config; flags override the file.
package main

import (
	"os"

	raven "github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if err != errInvalid {
			logrus.WithError(err).Errorln("bagit failed")
			raven.CaptureErrorAndWait(err, nil)
		}
		os.Exit(1)
	}
}
