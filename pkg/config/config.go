package config

import "time"

// Config is the full service configuration. Values are layered from
// defaults and environment variables (CRMFLOW_* overrides).
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	HTTP      HTTPConfig      `koanf:"http"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Generate  GenerateConfig  `koanf:"generate"`
	Drain     DrainConfig     `koanf:"drain"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Directory DirectoryConfig `koanf:"directory"`
	Social    SocialConfig    `koanf:"social"`
	Media     MediaConfig     `koanf:"media"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig mirrors the Postgres driver settings. Prefer ConnString;
// when empty a DSN is synthesized from the individual fields.
type DatabaseConfig struct {
	ConnString  string `koanf:"conn_string"`
	Host        string `koanf:"host"`
	Port        string `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	DBName      string `koanf:"name"`
	SSLMode     string `koanf:"ssl_mode"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// HTTPConfig tunes the shared outbound retrying client.
type HTTPConfig struct {
	Retries    int           `koanf:"retries" validate:"min=0,max=10"`
	BackoffCap time.Duration `koanf:"backoff_cap"`
	Timeout    time.Duration `koanf:"timeout"`
}

type WebhookConfig struct {
	// Secret enables HMAC verification of inbound webhooks. When empty,
	// or when the request carries no signature header, verification is
	// treated as not applicable.
	Secret          string `koanf:"secret"`
	SignatureHeader string `koanf:"signature_header"`
	MaxBody         int64  `koanf:"max_body"`
}

type ScheduleConfig struct {
	// GateStatus is the tracker status a task must carry for the
	// schedule pipeline to proceed; compared case-insensitively.
	GateStatus string `koanf:"gate_status" validate:"required"`
	Timezone   string `koanf:"timezone" validate:"required"`

	// Custom field names expected on the triggering task.
	AgentField   string `koanf:"agent_field"`
	AssetField   string `koanf:"asset_field"`
	PublishField string `koanf:"publish_field"`
}

type GenerateConfig struct {
	// ThumbnailField is the tracker custom field updated with the
	// landscape composite URL.
	ThumbnailField    string `koanf:"thumbnail_field"`
	TitleMaxLen       int    `koanf:"title_max_len" validate:"min=8"`
	DefaultBackground string `koanf:"default_background"`
	DefaultPhotoURL   string `koanf:"default_photo_url"`
}

type DrainConfig struct {
	BatchSize int           `koanf:"batch_size" validate:"min=1"`
	Pace      time.Duration `koanf:"pace"`
	Lease     time.Duration `koanf:"lease"`
	SweepSpec string        `koanf:"sweep_spec"`
}

type TrackerConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Token   string `koanf:"token"`
}

type DirectoryConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	APIKey  string `koanf:"api_key"`
}

type SocialConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	APIKey  string `koanf:"api_key"`
}

type MediaConfig struct {
	GenAIBaseURL      string `koanf:"genai_base_url" validate:"required,url"`
	GenAIKey          string `koanf:"genai_key"`
	CompositorBaseURL string `koanf:"compositor_base_url" validate:"required,url"`
	CompositorKey     string `koanf:"compositor_key"`
	StorageBaseURL    string `koanf:"storage_base_url" validate:"required,url"`
	StorageKey        string `koanf:"storage_key"`
	StorageBucket     string `koanf:"storage_bucket"`
	CDNBaseURL        string `koanf:"cdn_base_url" validate:"required,url"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the baseline configuration before env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        "5432",
			User:        "postgres",
			Password:    "postgres",
			DBName:      "crmflow",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		HTTP: HTTPConfig{
			Retries:    3,
			BackoffCap: 30 * time.Second,
			Timeout:    60 * time.Second,
		},
		Webhook: WebhookConfig{
			SignatureHeader: "x-provider-signature",
			MaxBody:         1 << 20,
		},
		Schedule: ScheduleConfig{
			GateStatus:   "ready to post",
			Timezone:     "America/New_York",
			AgentField:   "Agent Record ID",
			AssetField:   "Drive File ID",
			PublishField: "Publish Date",
		},
		Generate: GenerateConfig{
			ThumbnailField:    "Thumbnail URL",
			TitleMaxLen:       80,
			DefaultBackground: "a bright, modern residential interior with natural light",
		},
		Drain: DrainConfig{
			BatchSize: 5,
			Pace:      5 * time.Second,
			Lease:     10 * time.Minute,
			SweepSpec: "@every 1m",
		},
		Tracker:   TrackerConfig{BaseURL: "https://api.tracker.example.com/v2"},
		Directory: DirectoryConfig{BaseURL: "http://localhost:8000/rest/v1"},
		Social:    SocialConfig{BaseURL: "https://api.social.example.com/v1"},
		Media: MediaConfig{
			GenAIBaseURL:      "https://api.genai.example.com/v1",
			CompositorBaseURL: "https://api.compositor.example.com/v1",
			StorageBaseURL:    "http://localhost:8000/storage/v1",
			StorageBucket:     "thumbnails",
			CDNBaseURL:        "http://localhost:8000/render/v1",
		},
		Log: LogConfig{Level: "info"},
	}
}
