package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// sha256File computes the plain SHA-256 of a file as a lowercase hex
// string. This is the artifact hash registry consumers verify downloads
// against; it is distinct from the provider's block-wise content hash.
// The file is streamed through the hasher so large artifacts never load
// into memory.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
