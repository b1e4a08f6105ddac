// Package digest computes the checksums recorded in bag manifests. A single
// Writer fans every byte out to one hash per requested algorithm, so a file
// is only ever read once no matter how many manifests are being made.
//
// Algorithms are identified by the lowercase names used in BagIt manifest
// file names, e.g. "md5", "sha256", "sha512". Digests are always rendered as
// lowercase hexadecimal.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrUnknownAlgorithm means a requested algorithm name is not supported.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

	// ErrNoAlgorithms means an empty set of algorithms was requested.
	ErrNoAlgorithms = errors.New("no digest algorithms given")

	// ErrDuplicateAlgorithm means the same algorithm was requested twice.
	ErrDuplicateAlgorithm = errors.New("duplicate digest algorithm")
)

type algorithm struct {
	size int // digest size in bytes
	new  func() hash.Hash
}

// the blake2b constructors only fail when given a key.
func blake2b256() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

func blake2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

var algorithms = map[string]algorithm{
	"md5":         {md5.Size, md5.New},
	"sha1":        {sha1.Size, sha1.New},
	"sha224":      {sha256.Size224, sha256.New224},
	"sha256":      {sha256.Size, sha256.New},
	"sha384":      {sha512.Size384, sha512.New384},
	"sha512":      {sha512.Size, sha512.New},
	"sha3-256":    {32, sha3.New256},
	"sha3-512":    {64, sha3.New512},
	"blake2b-256": {blake2b.Size256, blake2b256},
	"blake2b-512": {blake2b.Size, blake2b512},
}

// Normalize returns the canonical form of an algorithm name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsSupported returns true if name identifies a known algorithm.
func IsSupported(name string) bool {
	_, ok := algorithms[Normalize(name)]
	return ok
}

// Supported returns the sorted list of algorithm names this package knows.
func Supported() []string {
	result := make([]string, 0, len(algorithms))
	for name := range algorithms {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HexLen returns the length of a hex encoded digest for the given algorithm,
// or 0 if the algorithm is unknown.
func HexLen(name string) int {
	return algorithms[Normalize(name)].size * 2
}

// Check verifies that names is a non-empty list of distinct, supported
// algorithms. It is meant to be called before any file is touched so that
// configuration mistakes surface before work begins.
func Check(names []string) error {
	if len(names) == 0 {
		return ErrNoAlgorithms
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		n := Normalize(name)
		if _, ok := algorithms[n]; !ok {
			return errors.Wrapf(ErrUnknownAlgorithm, "%q (supported: %s)",
				name, strings.Join(Supported(), ", "))
		}
		if seen[n] {
			return errors.Wrapf(ErrDuplicateAlgorithm, "%q", name)
		}
		seen[n] = true
	}
	return nil
}
