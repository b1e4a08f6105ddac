//go:build unix

package fileutil

import "golang.org/x/sys/unix"

// readable uses access(2) so that checking a file does not open it.
func readable(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}
