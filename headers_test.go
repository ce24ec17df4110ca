package httpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCollectionAddNormalizesCase(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("content-type", "text/plain"))
	v, ok := h.Get("Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", v)
}

func TestHeaderCollectionAddIsIdempotentOnRepeatedNormalization(t *testing.T) {
	h1 := NewHeaderCollection(TitleCase)
	require.NoError(t, h1.Add("x-custom-header", "a"))
	snap1 := h1.Snapshot()

	h2 := NewHeaderCollection(TitleCase)
	for _, entry := range snap1 {
		require.NoError(t, h2.Add(entry.Key, entry.Value))
	}
	assert.Equal(t, snap1, h2.Snapshot())
}

func TestHeaderCollectionCookieMerge(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Cookie", "a=1"))
	require.NoError(t, h.Add("Cookie", "b=2"))
	assert.Equal(t, 1, h.Count())
	v, _ := h.Get("Cookie")
	assert.Equal(t, "a=1; b=2", v)
}

func TestHeaderCollectionAddPreservesOrder(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("X-One", "1"))
	require.NoError(t, h.Add("X-Two", "2"))
	require.NoError(t, h.Add("X-Three", "3"))
	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"X-One", "X-Two", "X-Three"}, []string{snap[0].Key, snap[1].Key, snap[2].Key})
}

func TestHeaderCollectionSetRetainsOnlyLatest(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("X-Dup", "1"))
	require.NoError(t, h.Add("X-Dup", "2"))
	v := "3"
	require.NoError(t, h.Set("X-Dup", &v))
	assert.Equal(t, 1, h.Count())
	got, _ := h.Get("X-Dup")
	assert.Equal(t, "3", got)
}

func TestHeaderCollectionSetNilRemoves(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("X-Gone", "1"))
	require.NoError(t, h.Set("X-Gone", nil))
	assert.False(t, h.Contains("X-Gone"))
}

func TestHeaderCollectionRejectsInvalidName(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	err := h.Add("bad header", "v")
	assert.Error(t, err)
}

func TestHeaderCollectionAssignFromLineWithoutColonRemoves(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("X-Foo", "X-Foo"))
	require.NoError(t, h.AssignFromLine("X-Foo"))
	assert.False(t, h.Contains("X-Foo"))
}

func TestHeaderCollectionLowerCasePolicy(t *testing.T) {
	h := NewHeaderCollection(LowerCase)
	require.NoError(t, h.Add("Content-Type", "text/plain"))
	snap := h.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "content-type", snap[0].Key)
}

func TestHeaderCollectionMerge(t *testing.T) {
	a := NewHeaderCollection(TitleCase)
	require.NoError(t, a.Add("X-A", "1"))
	b := NewHeaderCollection(TitleCase)
	require.NoError(t, b.Add("X-B", "2"))
	require.NoError(t, a.Merge(b))
	assert.True(t, a.Contains("X-A"))
	assert.True(t, a.Contains("X-B"))
}
