// Package contenthash implements the block-wise content hash Dropbox uses
// to fingerprint file contents.
//
// The input is split into 4 MiB blocks, each block is hashed with SHA-256,
// the raw block digests are concatenated, and the concatenation is hashed
// with SHA-256 again. The lowercase hex form of the final digest equals the
// content_hash metadata field reported by the Dropbox API.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
)

const (
	// BlockSize is the fixed block size of the hash construction,
	// dictated by the Dropbox content-hash protocol.
	BlockSize = 4 * 1024 * 1024

	// Size is the length of the final digest in bytes.
	Size = sha256.Size
)

// ErrAlreadyFinalized is returned when a ContentHasher is written to or
// finalized after Digest or HexDigest has already been called.
var ErrAlreadyFinalized = errors.New("contenthash: hasher already finalized")

// ContentHasher incrementally computes the block-wise content hash of a
// byte stream. It implements io.Writer so it can be the target of io.Copy.
//
// A ContentHasher serves exactly one stream: there is no Reset, and after
// the single permitted Digest or HexDigest call every further operation
// returns ErrAlreadyFinalized. It is not safe for concurrent use; callers
// sharing one instance across goroutines must synchronize externally.
type ContentHasher struct {
	overall   hash.Hash // digest over concatenated block digests
	block     hash.Hash // digest over the current block
	blockPos  int       // bytes written into the current block
	finalized bool
}

// New returns an empty ContentHasher.
func New() *ContentHasher {
	return &ContentHasher{
		overall: sha256.New(),
		block:   sha256.New(),
	}
}

// Write feeds p into the hash state, splitting it across block boundaries
// as needed. A single call may close out the current block, span several
// full blocks, and leave a partial block behind.
func (h *ContentHasher) Write(p []byte) (int, error) {
	if h.finalized {
		return 0, ErrAlreadyFinalized
	}

	n := len(p)
	for len(p) > 0 {
		space := BlockSize - h.blockPos
		if space > len(p) {
			space = len(p)
		}

		h.block.Write(p[:space])
		h.blockPos += space
		p = p[space:]

		// Fold full blocks eagerly so that a stream whose length is an
		// exact multiple of BlockSize leaves no pending block behind.
		if h.blockPos == BlockSize {
			h.overall.Write(h.block.Sum(nil))
			h.block.Reset()
			h.blockPos = 0
		}
	}
	return n, nil
}

// Digest finalizes the hasher and returns the raw digest bytes. If a
// partial block is pending, its digest is folded in first. Digest and
// HexDigest are mutually exclusive and may be called exactly once between
// them; any further call returns ErrAlreadyFinalized.
func (h *ContentHasher) Digest() ([]byte, error) {
	if h.finalized {
		return nil, ErrAlreadyFinalized
	}
	h.finalized = true

	if h.blockPos > 0 {
		h.overall.Write(h.block.Sum(nil))
	}
	return h.overall.Sum(nil), nil
}

// HexDigest finalizes the hasher and returns the digest as a lowercase
// hexadecimal string, the encoding used by the content_hash field.
func (h *ContentHasher) HexDigest() (string, error) {
	d, err := h.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(d), nil
}
