package contenthash

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("broken stream")

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errBroken }

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

// shortWriter accepts at most limit bytes total, then fails.
type shortWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	space := w.limit - w.buf.Len()
	if space <= 0 {
		return 0, errBroken
	}
	if len(p) <= space {
		return w.buf.Write(p)
	}
	n, _ := w.buf.Write(p[:space])
	return n, errBroken
}

func TestHashingReader_MatchesDirectHash(t *testing.T) {
	data := patternBytes(1 << 20)

	hasher := New()
	r := NewHashingReader(bytes.NewReader(data), hasher)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got, "adapter must not alter the stream")

	sum, err := hasher.HexDigest()
	require.NoError(t, err)
	assert.Equal(t, referenceHash(data), sum)
}

func TestHashingReader_NoUpdateOnFailedRead(t *testing.T) {
	hasher := New()
	r := NewHashingReader(brokenReader{}, hasher)

	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, errBroken)

	// Nothing was produced, so nothing was hashed.
	sum, err := hasher.HexDigest()
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, sum)
}

func TestHashingReader_FinalizedHasher(t *testing.T) {
	hasher := New()
	_, err := hasher.Digest()
	require.NoError(t, err)

	r := NewHashingReader(bytes.NewReader([]byte("abc")), hasher)
	_, err = r.Read(make([]byte, 3))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestHashingReader_CloseForwards(t *testing.T) {
	inner := &trackingCloser{Reader: bytes.NewReader(nil)}
	r := NewHashingReader(inner, New())
	require.NoError(t, r.Close())
	assert.True(t, inner.closed)

	// A plain reader has nothing to close.
	plain := NewHashingReader(bytes.NewReader(nil), New())
	assert.NoError(t, plain.Close())
}

func TestHashingWriter_MatchesDirectHash(t *testing.T) {
	data := patternBytes(1 << 20)

	var dst bytes.Buffer
	hasher := New()
	w := NewHashingWriter(&dst, hasher)

	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.Equal(t, data, dst.Bytes(), "adapter must not alter the stream")

	sum, err := hasher.HexDigest()
	require.NoError(t, err)
	assert.Equal(t, referenceHash(data), sum)
}

func TestHashingWriter_HashesOnlyAcceptedBytes(t *testing.T) {
	data := patternBytes(100)

	hasher := New()
	w := NewHashingWriter(&shortWriter{limit: 5}, hasher)

	n, err := w.Write(data)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 5, n)

	sum, err := hasher.HexDigest()
	require.NoError(t, err)
	assert.Equal(t, referenceHash(data[:5]), sum)
}

func TestHashingWriter_FlushForwards(t *testing.T) {
	var dst bytes.Buffer
	buffered := bufio.NewWriter(&dst)

	hasher := New()
	w := NewHashingWriter(buffered, hasher)

	_, err := w.Write([]byte("flushed through"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, "flushed through", dst.String())

	// Flushing hashes nothing extra.
	sum, err := hasher.HexDigest()
	require.NoError(t, err)
	assert.Equal(t, referenceHash([]byte("flushed through")), sum)
}
