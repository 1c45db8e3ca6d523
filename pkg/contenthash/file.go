package contenthash

import (
	"io"
	"os"
)

// SumReader computes the content hash of everything r yields, streaming so
// that arbitrarily large inputs are hashed in constant memory. Returns the
// lowercase hex digest.
func SumReader(r io.Reader) (string, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return h.HexDigest()
}

// SumFile computes the content hash of a file on disk.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return SumReader(f)
}
