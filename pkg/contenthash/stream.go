package contenthash

import "io"

// HashingReader is a pass-through io.Reader that feeds every byte produced
// by the wrapped reader into a hasher, so a digest can be computed as a
// side effect of an unrelated transfer (an upload, a download) without
// buffering the stream.
//
// The hasher is any io.Writer; *ContentHasher and the hash.Hash
// implementations from the standard library all qualify. The caller keeps
// ownership of the hasher and reads the digest once the transfer is done.
type HashingReader struct {
	r io.Reader
	h io.Writer
}

// NewHashingReader wraps r so that all bytes read through it are also
// written to h.
func NewHashingReader(r io.Reader, h io.Writer) *HashingReader {
	return &HashingReader{r: r, h: h}
}

// Read reads from the wrapped reader and feeds the bytes it produced into
// the hasher. A failed read that produced no bytes has no hashing side
// effect; the error propagates unchanged.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		if _, herr := hr.h.Write(p[:n]); herr != nil {
			return n, herr
		}
	}
	return n, err
}

// Close closes the wrapped reader when it is an io.Closer. Closing has no
// hashing side effect.
func (hr *HashingReader) Close() error {
	if c, ok := hr.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// HashingWriter is the write-side counterpart of HashingReader: every byte
// the wrapped writer accepts is also fed into the hasher.
type HashingWriter struct {
	w io.Writer
	h io.Writer
}

// NewHashingWriter wraps w so that all bytes successfully written through
// it are also written to h.
func NewHashingWriter(w io.Writer, h io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: h}
}

// Write writes p to the wrapped writer and hashes exactly the prefix the
// writer accepted. On a short write only the accepted bytes are hashed and
// the original error propagates.
func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		if _, herr := hw.h.Write(p[:n]); herr != nil && err == nil {
			return n, herr
		}
	}
	return n, err
}

// Close closes the wrapped writer when it is an io.Closer.
func (hw *HashingWriter) Close() error {
	if c, ok := hw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Flush flushes the wrapped writer when it supports flushing.
func (hw *HashingWriter) Flush() error {
	if f, ok := hw.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
