package httpcore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestComputeETagDeterministic(t *testing.T) {
	f := writeTempFile(t, "a.txt", "hello world")
	info, err := f.Stat()
	require.NoError(t, err)

	e1, err := ComputeETag(f, info.Size(), info.ModTime())
	require.NoError(t, err)
	e2, err := ComputeETag(f, info.Size(), info.ModTime())
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
	assert.True(t, e1[0] == '"' && e1[len(e1)-1] == '"')
}

func TestServeFileFullResponse(t *testing.T) {
	f := writeTempFile(t, "page.html", "<html>hi</html>")
	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET"}, StaticFileOptions{})
	require.NoError(t, err)
	require.NotNil(t, body)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<html>hi</html>", string(data))
	assert.Equal(t, "200 OK", resp.StatusLine)
}

func TestServeFileEmitsETagOnCacheableResponse(t *testing.T) {
	f := writeTempFile(t, "cached.txt", "data")
	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET"}, StaticFileOptions{})
	require.NoError(t, err)
	require.NotNil(t, body)
	got, ok := resp.Headers.Get("ETag")
	require.True(t, ok)
	assert.True(t, got[0] == '"' && got[len(got)-1] == '"')
}

func TestServeFileConditionalGetReturns304(t *testing.T) {
	f := writeTempFile(t, "cached.txt", "data")
	info, _ := f.Stat()
	etag, err := ComputeETag(f, info.Size(), info.ModTime())
	require.NoError(t, err)

	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET", IfNoneMatch: etag}, StaticFileOptions{})
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "304 Not Modified", resp.StatusLine)
}

func TestServeFileByteRange(t *testing.T) {
	f := writeTempFile(t, "range.txt", "0123456789")
	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET", Range: "bytes=2-4"}, StaticFileOptions{})
	require.NoError(t, err)
	require.NotNil(t, body)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))
	assert.Equal(t, "206 Partial Content", resp.StatusLine)
}

func TestServeFileMultipleRangesProducesMultipart(t *testing.T) {
	f := writeTempFile(t, "multi.txt", "0123456789")
	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET", Range: "bytes=0-1,5-6"}, StaticFileOptions{})
	require.NoError(t, err)
	require.NotNil(t, body)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	ct, _ := resp.Headers.Get("Content-Type")
	assert.Contains(t, ct, "multipart/byteranges")
	assert.Contains(t, string(data), "01")
	assert.Contains(t, string(data), "56")
}

func TestServeFileUnsatisfiableRange(t *testing.T) {
	f := writeTempFile(t, "small.txt", "abc")
	resp := NewResponse()
	body, err := ServeFile(resp, f, StaticFileRequest{Method: "GET", Range: "bytes=100-200"}, StaticFileOptions{})
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "416 Requested Range Not Satisfiable", resp.StatusLine)
}

func TestParseRangesRejectsOverlap(t *testing.T) {
	_, err := parseRanges("bytes=0-5,3-8", 100)
	assert.Error(t, err)
}

func TestParseRangesSkipsOutOfBoundsStart(t *testing.T) {
	ranges, err := parseRanges("bytes=1000-2000", 100)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}
