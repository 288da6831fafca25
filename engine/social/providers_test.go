package social

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
)

func TestBuildProviders(t *testing.T) {
	t.Run("Should include only configured channels", func(t *testing.T) {
		providers := BuildProviders(&directory.SocialSettings{
			FacebookID: "fb-1",
			TikTokID:   "tt-1",
		}, "ignored")
		assert.Equal(t, []Provider{
			{Network: NetworkFacebook, BlogKey: "fb-1"},
			{Network: NetworkTikTok, BlogKey: "tt-1"},
		}, providers)
	})
	t.Run("Should carry the title only for YouTube", func(t *testing.T) {
		providers := BuildProviders(&directory.SocialSettings{
			FacebookID: "fb-1",
			YouTubeID:  "yt-1",
		}, "Top 5 Tips")
		assert.Equal(t, []Provider{
			{Network: NetworkFacebook, BlogKey: "fb-1"},
			{Network: NetworkYouTube, BlogKey: "yt-1", Title: "Top 5 Tips"},
		}, providers)
	})
	t.Run("Should return nothing when no channels are configured", func(t *testing.T) {
		assert.Empty(t, BuildProviders(&directory.SocialSettings{}, "x"))
	})
}
