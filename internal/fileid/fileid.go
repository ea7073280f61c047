// Package fileid derives stable identifiers for local files: document IDs for the
// served corpus and content fingerprints for cached bigram tables.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	docPrefix         = "doc:"
	fingerprintPrefix = "set:"
)

// DocID returns a stable document ID for the given path. Paths are cleaned first,
// so /a/b, /a/b/ and /a/./b share an ID.
func DocID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return docPrefix + hex.EncodeToString(hash[:16])
}

// Fingerprint hashes the cleaned path, size and modification time of every file.
// Order of files does not matter. Any change to the set or to a file yields a new value.
func Fingerprint(files []string) (string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, filepath.Clean(f))
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", p, err)
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
		h.Write([]byte{'\n'})
	}
	return fingerprintPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
