package bluesky

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFacets(t *testing.T) {
	t.Run("finds a link with byte offsets", func(t *testing.T) {
		text := "check https://example.com/page out"
		facets := DetectFacets(text)
		require.Len(t, facets, 1)

		f := facets[0]
		assert.Equal(t, int64(6), f.Index.ByteStart)
		assert.Equal(t, int64(30), f.Index.ByteEnd)
		require.Len(t, f.Features, 1)
		require.NotNil(t, f.Features[0].RichtextFacet_Link)
		assert.Equal(t, "https://example.com/page", f.Features[0].RichtextFacet_Link.Uri)
	})

	t.Run("finds hashtags without the hash in the tag value", func(t *testing.T) {
		facets := DetectFacets("photo day #sunset #goldenhour")
		require.Len(t, facets, 2)

		require.NotNil(t, facets[0].Features[0].RichtextFacet_Tag)
		assert.Equal(t, "sunset", facets[0].Features[0].RichtextFacet_Tag.Tag)
		assert.Equal(t, "goldenhour", facets[1].Features[0].RichtextFacet_Tag.Tag)
	})

	t.Run("offsets are bytes, not runes", func(t *testing.T) {
		text := "héllo #tag"
		facets := DetectFacets(text)
		require.Len(t, facets, 1)
		assert.Equal(t, int64(7), facets[0].Index.ByteStart)
		assert.Equal(t, int64(11), facets[0].Index.ByteEnd)
	})

	t.Run("plain text yields nothing", func(t *testing.T) {
		assert.Empty(t, DetectFacets("nothing interesting here"))
	})
}
