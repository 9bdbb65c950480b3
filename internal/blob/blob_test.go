package blob

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gz(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		payload := bytes.Repeat([]byte("note body "), 100)
		out, err := Decompress(gz(t, payload))
		require.NoError(t, err)
		assert.Equal(t, payload, out)
	})

	t.Run("not gzip", func(t *testing.T) {
		out, err := Decompress([]byte("plain text, no framing"))
		require.ErrorIs(t, err, ErrDecompression)
		assert.Nil(t, out)
	})

	t.Run("truncated stream", func(t *testing.T) {
		data := gz(t, bytes.Repeat([]byte("abcdefgh"), 512))
		out, err := Decompress(data[:len(data)/2])
		require.ErrorIs(t, err, ErrDecompression)
		assert.Nil(t, out, "truncated input must not yield partial text")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Decompress(nil)
		require.ErrorIs(t, err, ErrDecompression)
	})
}

func TestIsGzip(t *testing.T) {
	assert.True(t, IsGzip(gz(t, []byte("x"))))
	assert.False(t, IsGzip([]byte{0x1f}))
	assert.False(t, IsGzip([]byte("hello")))
}
