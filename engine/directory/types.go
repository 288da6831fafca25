package directory

// AgentProfile is the owning account's profile in the CRM backend.
type AgentProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (p *AgentProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// SocialSettings is an agent's channel configuration. A network is
// considered configured iff its channel id is non-empty.
type SocialSettings struct {
	AgentID          string   `json:"agent_id"`
	TrackerListID    string   `json:"tracker_list_id"`
	FacebookID       string   `json:"facebook_id"`
	InstagramID      string   `json:"instagram_id"`
	LinkedInID       string   `json:"linkedin_id"`
	ThreadsID        string   `json:"threads_id"`
	TikTokID         string   `json:"tiktok_id"`
	TwitterID        string   `json:"twitter_id"`
	GoogleBusinessID string   `json:"google_business_id"`
	YouTubeID        string   `json:"youtube_id"`
	ReferencePhotos  []string `json:"reference_photos"`
	Backgrounds      []string `json:"backgrounds"`
	BrandGuidelines  string   `json:"brand_guidelines"`
}

// GeneratedContent is previously generated copy for a task; its absence
// is tolerated by the pipelines.
type GeneratedContent struct {
	TaskID string `json:"task_id"`
	Copy   string `json:"copy"`
	Title  string `json:"title"`
}
