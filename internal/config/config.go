package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "PAPER_DIGEST_CONFIG"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmBaseURLEnv     = "LLM_BASE_URL"
	llmModelEnv       = "LLM_MODEL"
	feishuWebhookEnv  = "FEISHU_WEBHOOK_URL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
	LLM           LLMConfig          `yaml:"llm"`
	Channels      []ChannelConfig    `yaml:"channels"`
	Source        SourceConfig       `yaml:"source"`
	Data          DataConfig         `yaml:"data"`
	Schedule      ScheduleConfig     `yaml:"schedule"`
	Logging       LoggingConfig      `yaml:"logging"`
	Language      string             `yaml:"language"`
}

// SubscriptionConfig lists the arXiv categories to follow and the reader's
// interest tags the classifier matches against.
type SubscriptionConfig struct {
	Categories   []string            `yaml:"categories"`
	InterestTags []InterestTagConfig `yaml:"interestTags"`
}

// InterestTagConfig describes one reader interest for the classifier.
// In YAML it may be written as a bare string (the label) or an object.
type InterestTagConfig struct {
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (t *InterestTagConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&t.Label)
	}
	type plain InterestTagConfig
	return value.Decode((*plain)(t))
}

// LLMConfig defines how to contact the classification model.
type LLMConfig struct {
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"apiKey"`
	Temperature    float64 `yaml:"temperature"`
	MaxConcurrency int     `yaml:"maxConcurrency"`
}

// ChannelConfig wires one outbound notification channel.
type ChannelConfig struct {
	Type         string   `yaml:"type"`
	WebhookURL   string   `yaml:"webhookUrl"`
	BotToken     string   `yaml:"botToken"`
	ChatID       string   `yaml:"chatId"`
	DelaySeconds float64  `yaml:"delaySeconds"`
	ExcludeTags  []string `yaml:"excludeTags"`
}

// SourceConfig selects the arXiv scanning strategy.
type SourceConfig struct {
	Scanner    string `yaml:"scanner"`
	MaxResults int    `yaml:"maxResults"`
}

// DataConfig locates the on-disk pipeline artifacts.
type DataConfig struct {
	RawDir     string `yaml:"rawDir"`
	ArchiveDir string `yaml:"archiveDir"`
	DailyDir   string `yaml:"dailyDir"`
	StatusFile string `yaml:"statusFile"`
	IndexFile  string `yaml:"indexFile"`
}

// ScheduleConfig controls the daily supervisor loop.
type ScheduleConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
	MaxAttempts     int `yaml:"maxAttempts"`
}

// LoggingConfig sets console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom reads a specific YAML file over the defaults; an empty path keeps
// defaults plus environment overrides.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	for i := range c.Channels {
		switch c.Channels[i].Type {
		case "feishu":
			if v := os.Getenv(feishuWebhookEnv); v != "" {
				c.Channels[i].WebhookURL = v
			}
		case "telegram":
			if v := os.Getenv(telegramTokenEnv); v != "" {
				c.Channels[i].BotToken = v
			}
			if v := os.Getenv(telegramChatIDEnv); v != "" {
				c.Channels[i].ChatID = v
			}
		}
	}
}

func mergeConfig(base, override Config) Config {
	if len(override.Subscriptions.Categories) > 0 {
		base.Subscriptions.Categories = override.Subscriptions.Categories
	}
	if len(override.Subscriptions.InterestTags) > 0 {
		base.Subscriptions.InterestTags = override.Subscriptions.InterestTags
	}

	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Temperature != 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxConcurrency != 0 {
		base.LLM.MaxConcurrency = override.LLM.MaxConcurrency
	}

	if len(override.Channels) > 0 {
		base.Channels = override.Channels
	}

	if override.Source.Scanner != "" {
		base.Source.Scanner = override.Source.Scanner
	}
	if override.Source.MaxResults != 0 {
		base.Source.MaxResults = override.Source.MaxResults
	}

	if override.Data.RawDir != "" {
		base.Data.RawDir = override.Data.RawDir
	}
	if override.Data.ArchiveDir != "" {
		base.Data.ArchiveDir = override.Data.ArchiveDir
	}
	if override.Data.DailyDir != "" {
		base.Data.DailyDir = override.Data.DailyDir
	}
	if override.Data.StatusFile != "" {
		base.Data.StatusFile = override.Data.StatusFile
	}
	if override.Data.IndexFile != "" {
		base.Data.IndexFile = override.Data.IndexFile
	}

	if override.Schedule.IntervalMinutes != 0 {
		base.Schedule.IntervalMinutes = override.Schedule.IntervalMinutes
	}
	if override.Schedule.MaxAttempts != 0 {
		base.Schedule.MaxAttempts = override.Schedule.MaxAttempts
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Language != "" {
		base.Language = override.Language
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Subscriptions: SubscriptionConfig{
			Categories: []string{"cs.CL", "cs.CV", "cs.LG"},
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.deepseek.com/v1",
			Model:          "deepseek-chat",
			Temperature:    0.1,
			MaxConcurrency: 10,
		},
		Channels: nil,
		Source: SourceConfig{
			Scanner:    "arxiv-api",
			MaxResults: 1000,
		},
		Data: DataConfig{
			RawDir:     "data/raw",
			ArchiveDir: "data/archive",
			DailyDir:   "data/daily",
			StatusFile: "data/pipeline_status.json",
			IndexFile:  "data/papers.db",
		},
		Schedule: ScheduleConfig{
			IntervalMinutes: 30,
			MaxAttempts:     16,
		},
		Logging:  LoggingConfig{Level: "info"},
		Language: "en",
	}
}
