package httpcore

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAlgorithmPrefersHighestWeight(t *testing.T) {
	got := SelectAlgorithm("gzip;q=0.5, br;q=0.9, deflate;q=0.1", AlgorithmBrotli, AlgorithmGzip, AlgorithmDeflate)
	assert.Equal(t, AlgorithmBrotli, got)
}

func TestSelectAlgorithmTieBreaksByServerPreference(t *testing.T) {
	got := SelectAlgorithm("gzip, br, deflate", AlgorithmBrotli, AlgorithmGzip, AlgorithmDeflate)
	assert.Equal(t, AlgorithmBrotli, got)
}

func TestSelectAlgorithmRespectsZeroWeight(t *testing.T) {
	got := SelectAlgorithm("br;q=0, gzip", AlgorithmBrotli, AlgorithmGzip)
	assert.Equal(t, AlgorithmGzip, got)
}

func TestSelectAlgorithmNoOverlapReturnsNone(t *testing.T) {
	got := SelectAlgorithm("identity", AlgorithmBrotli, AlgorithmGzip)
	assert.Equal(t, AlgorithmNone, got)
}

func TestShouldCompressThreshold(t *testing.T) {
	assert.False(t, ShouldCompress(AlgorithmGzip, ".html", 100, nil))
	assert.True(t, ShouldCompress(AlgorithmGzip, ".html", 1000, nil))
	assert.False(t, ShouldCompress(AlgorithmGzip, ".png", 1000, nil))
}

func TestCompressWriterRoundTripGzip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCompressWriter(&buf, AlgorithmGzip)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello compressed world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := DecodeReader("gzip", &buf)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello compressed world", string(got))
}

func TestCompressWriterRoundTripBrotli(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCompressWriter(&buf, AlgorithmBrotli)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello brotli world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := DecodeReader("br", &buf)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello brotli world", string(got))
}

func TestCompressWriterRoundTripDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCompressWriter(&buf, AlgorithmDeflate)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello deflate world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := DecodeReader("deflate", &buf)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello deflate world", string(got))
}
