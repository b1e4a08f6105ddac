// Package bagit implements enough of the BagIt format to create bags
// from directory trees and to validate existing bags against their own
// manifests.
//
// A bag is a directory holding a payload under "data/" together with
// bookkeeping files: the "bagit.txt" declaration, the "bag-info.txt"
// metadata, one "manifest-<alg>.txt" per checksum algorithm, and one
// "tagmanifest-<alg>.txt" per algorithm covering the other bookkeeping
// files. Manifests list "<hex digest> <path>" one per line, with paths
// relative to the bag root and always using forward slashes.
//
// A Builder creates a bag. Every payload file is copied and digested in one
// read, possibly by several workers at once, and the new bag is only put in
// place once every manifest has been written. A Validator checks a bag,
// either completely by recomputing every digest, or quickly by comparing the
// Payload-Oxum against the payload's byte and file counts. Validation reports
// every discrepancy it finds in a Result rather than stopping at the first.
//
// Specific items not implemented are writing fetch files and updating an
// existing bag in place. Remote entries in a fetch.txt are honored when
// validating.
//
// BagIt is defined by https://tools.ietf.org/html/rfc8493.
package bagit

import (
	"sort"
)

const (
	// Version is the version of the BagIt format written by this
	// package.
	Version = "0.97"

	// Encoding is the only tag file character encoding supported.
	Encoding = "UTF-8"

	// SoftwareAgent is the default value of the Bag-Software-Agent tag.
	SoftwareAgent = "bagger <https://github.com/ndlib/bagger>"

	// PayloadDir is the name of the payload directory inside a bag.
	PayloadDir = "data"

	declarationFile = "bagit.txt"
	infoFile        = "bag-info.txt"
	oldInfoFile     = "package-info.txt"
	fetchFile       = "fetch.txt"
)

// Names of the tags written by a Builder. Other useful tags are listed in
// StandardTags.
const (
	TagVersion       = "BagIt-Version"
	TagEncoding      = "Tag-File-Character-Encoding"
	TagPayloadOxum   = "Payload-Oxum"
	TagBaggingDate   = "Bagging-Date"
	TagBagSize       = "Bag-Size"
	TagSoftwareAgent = "Bag-Software-Agent"
)

// StandardTags lists the reserved bag-info.txt tag names which a user might
// supply. Bagging-Date and Payload-Oxum are generated.
var StandardTags = []string{
	"Source-Organization",
	"Organization-Address",
	"Contact-Name",
	"Contact-Phone",
	"Contact-Email",
	"External-Description",
	"External-Identifier",
	"Bag-Size",
	"Bag-Group-Identifier",
	"Bag-Count",
	"Internal-Sender-Identifier",
	"Internal-Sender-Description",
	"BagIt-Profile-Identifier",
}

// Bag represents a single bag, either just created by a Builder or loaded
// with Open. It is not changed once made.
type Bag struct {
	// from bagit.txt
	Version  string
	Encoding string

	// the bag-info.txt (or package-info.txt) contents. Never nil.
	Info *Info

	// payload manifests, ordered by algorithm name
	Manifests []*Manifest

	// tag manifests, ordered by algorithm name
	TagManifests []*Manifest

	// contents of fetch.txt, if any
	Fetch []FetchEntry
}

// ManifestEntry gives every digest recorded for one path across a set of
// manifests.
type ManifestEntry struct {
	Path    string
	Digests map[string]string // algorithm name to lowercase hex
}

// Algorithms returns the algorithm names of the payload manifests.
func (b *Bag) Algorithms() []string {
	var result []string
	for _, m := range b.Manifests {
		result = append(result, m.Algorithm)
	}
	return result
}

// Manifest returns the payload manifest for the given algorithm, or nil.
func (b *Bag) Manifest(alg string) *Manifest {
	for _, m := range b.Manifests {
		if m.Algorithm == alg {
			return m
		}
	}
	return nil
}

// Entries merges the payload manifests into one entry per path, in the order
// paths first appear.
func (b *Bag) Entries() []ManifestEntry {
	return mergeEntries(b.Manifests)
}

// TagEntries merges the tag manifests into one entry per path.
func (b *Bag) TagEntries() []ManifestEntry {
	return mergeEntries(b.TagManifests)
}

// Oxum returns the declared Payload-Oxum. The boolean is false if the bag
// does not declare one.
func (b *Bag) Oxum() (Oxum, bool, error) {
	v, ok := b.Info.Get(TagPayloadOxum)
	if !ok {
		return Oxum{}, false, nil
	}
	ox, err := ParseOxum(v)
	return ox, true, err
}

// remote returns the set of paths which a fetch.txt says are fetched from
// elsewhere.
func (b *Bag) remote() map[string]bool {
	result := make(map[string]bool, len(b.Fetch))
	for _, f := range b.Fetch {
		result[f.Path] = true
	}
	return result
}

func mergeEntries(manifests []*Manifest) []ManifestEntry {
	var result []ManifestEntry
	index := make(map[string]int)
	for _, m := range manifests {
		for _, e := range m.entries {
			i, ok := index[e.Path]
			if !ok {
				i = len(result)
				index[e.Path] = i
				result = append(result, ManifestEntry{
					Path:    e.Path,
					Digests: make(map[string]string),
				})
			}
			result[i].Digests[m.Algorithm] = e.Digest
		}
	}
	return result
}

func sortManifests(ms []*Manifest) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Algorithm < ms[j].Algorithm })
}
