package bluesky

import (
	"regexp"
	"strings"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

var (
	linkRegex = regexp.MustCompile(`(?i)\b(https?://[^\s<>"')]+)`)
	tagRegex  = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{N}_]+)`)
)

// DetectFacets finds links and hashtags in post text and returns them as
// rich-text facets with byte-offset indices. Mentions are left to the
// authoring surface, which can resolve handles against the network.
func DetectFacets(text string) []*appbsky.RichtextFacet {
	var facets []*appbsky.RichtextFacet

	for _, match := range linkRegex.FindAllStringIndex(text, -1) {
		facets = append(facets, &appbsky.RichtextFacet{
			Index: &appbsky.RichtextFacet_ByteSlice{
				ByteStart: int64(match[0]),
				ByteEnd:   int64(match[1]),
			},
			Features: []*appbsky.RichtextFacet_Features_Elem{
				{
					RichtextFacet_Link: &appbsky.RichtextFacet_Link{Uri: text[match[0]:match[1]]},
				},
			},
		})
	}

	for _, match := range tagRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := match[2], match[3]
		tag := strings.TrimPrefix(text[start:end], "#")
		facets = append(facets, &appbsky.RichtextFacet{
			Index: &appbsky.RichtextFacet_ByteSlice{
				ByteStart: int64(start),
				ByteEnd:   int64(end),
			},
			Features: []*appbsky.RichtextFacet_Features_Elem{
				{
					RichtextFacet_Tag: &appbsky.RichtextFacet_Tag{Tag: tag},
				},
			},
		})
	}

	return facets
}
