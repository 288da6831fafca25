package social

import "github.com/leokalinowski/purpose-driven-crm/engine/directory"

// Network is one of the fixed set of publishable channels.
type Network string

const (
	NetworkFacebook       Network = "FACEBOOK"
	NetworkInstagram      Network = "INSTAGRAM"
	NetworkLinkedIn       Network = "LINKEDIN"
	NetworkThreads        Network = "THREADS"
	NetworkTikTok         Network = "TIKTOK"
	NetworkTwitter        Network = "TWITTER"
	NetworkGoogleBusiness Network = "GMB"
	NetworkYouTube        Network = "YOUTUBE"
)

// Provider is one channel entry in a scheduling request. Title is only
// carried for YouTube.
type Provider struct {
	Network Network `json:"network"`
	BlogKey string  `json:"blogKey"`
	Title   string  `json:"title,omitempty"`
}

// BuildProviders includes each network iff its channel id is configured.
// YouTube additionally carries the given title.
func BuildProviders(s *directory.SocialSettings, youtubeTitle string) []Provider {
	channels := []struct {
		network Network
		blogKey string
	}{
		{NetworkFacebook, s.FacebookID},
		{NetworkInstagram, s.InstagramID},
		{NetworkLinkedIn, s.LinkedInID},
		{NetworkThreads, s.ThreadsID},
		{NetworkTikTok, s.TikTokID},
		{NetworkTwitter, s.TwitterID},
		{NetworkGoogleBusiness, s.GoogleBusinessID},
		{NetworkYouTube, s.YouTubeID},
	}
	var providers []Provider
	for _, ch := range channels {
		if ch.blogKey == "" {
			continue
		}
		p := Provider{Network: ch.network, BlogKey: ch.blogKey}
		if ch.network == NetworkYouTube {
			p.Title = youtubeTitle
		}
		providers = append(providers, p)
	}
	return providers
}
