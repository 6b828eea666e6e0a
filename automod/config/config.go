// Static configuration for the moderation pipeline: keyword sets, analyzer thresholds, platform rate limits and executor/orchestrator tuning.
//
// Configuration is loaded once at startup and never mutated during a pass. Invalid configuration is fatal: callers must check Validate before starting.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/moderation-ai/modai/automod/analyzer"
	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/ratelimit"
	"github.com/moderation-ai/modai/automod/setstore"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid moderation config")

// names of sets in the JSON sets file format
const (
	SetSpamPhrases        = "spam-phrases"
	SetProfanity          = "profanity"
	SetHarassmentPatterns = "harassment-patterns"
)

type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type Config struct {
	SpamPhrases        []string `yaml:"spam_phrases"`
	Profanity          []string `yaml:"profanity"`
	HarassmentPatterns []string `yaml:"harassment_patterns"`

	CapsThreshold  float64 `yaml:"caps_threshold"`
	ShortTextWords int     `yaml:"short_text_words"`

	RateLimits       map[engine.Platform]RateLimit `yaml:"rate_limits"`
	DefaultRateLimit RateLimit                     `yaml:"default_rate_limit"`
	RateLimitMaxWait time.Duration                 `yaml:"rate_limit_max_wait"`

	MaxRetries          int           `yaml:"max_retries"`
	BackoffBase         time.Duration `yaml:"backoff_base"`
	QuotaDestructiveDay int           `yaml:"quota_destructive_day"`
	IdempotencyTTL      time.Duration `yaml:"idempotency_ttl"`

	PollInterval   time.Duration `yaml:"poll_interval"`
	InterPostDelay time.Duration `yaml:"inter_post_delay"`
	MaxComments    int           `yaml:"max_comments"`
	Workers        int           `yaml:"workers"`

	harassment []analyzer.Pattern
}

func Default() Config {
	return Config{
		SpamPhrases: []string{
			"free money",
			"click here",
			"check this out",
			"visit my",
			"subscribe to my",
			"follow me",
			"buy now",
			"limited offer",
		},
		Profanity: []string{
			"shit",
			"fuck",
			"damn",
			"ass",
			"bitch",
			"crap",
			"bastard",
			"idiot",
			"stupid",
			"dumb",
			"moron",
		},
		HarassmentPatterns: []string{
			`\b(you are|you're|ur)\s+(stupid|idiot|moron|loser|pathetic|useless|worthless)\b`,
			`\b(you|ur)\s+(stupid|idiot|moron|loser)\b`,
			`\b(everyone knows|everyone sees)\s+(that you|you are|you're)\b`,
			`\b(nobody likes|no one likes)\s+you\b`,
			`\b(get a life|shut up|go away)\b`,
			`\b(stupid|idiot|loser)\s+(comment|post|message)\b`,
			`\b(kill|murder|destroy|hurt|harm)\s+(you|your)\b`,
		},
		CapsThreshold:  0.7,
		ShortTextWords: 2,
		RateLimits: map[engine.Platform]RateLimit{
			engine.PlatformTwitter:   {Requests: 180, Window: time.Minute},
			engine.PlatformReddit:    {Requests: 60, Window: time.Minute},
			engine.PlatformYouTube:   {Requests: 300, Window: time.Minute},
			engine.PlatformInstagram: {Requests: 200, Window: time.Minute},
			engine.PlatformMedium:    {Requests: 50, Window: time.Minute},
			engine.PlatformTikTok:    {Requests: 50, Window: time.Minute},
		},
		DefaultRateLimit:    RateLimit{Requests: 60, Window: time.Minute},
		RateLimitMaxWait:    60 * time.Second,
		MaxRetries:          3,
		BackoffBase:         time.Second,
		QuotaDestructiveDay: 0,
		IdempotencyTTL:      24 * time.Hour,
		PollInterval:        5 * time.Minute,
		InterPostDelay:      time.Second,
		MaxComments:         500,
		Workers:             8,
	}
}

// Reads a YAML file and overlays it on the defaults. Lists in the file replace the default lists; rate limit entries are merged per platform.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Replaces keyword lists with those present in a JSON sets file. Sets missing from the file keep their current values.
func (c *Config) LoadSetsFile(path string) error {
	sets := setstore.NewMemSetStore()
	if err := sets.LoadFromFileJSON(path); err != nil {
		return fmt.Errorf("loading sets file: %w", err)
	}
	return c.ApplySets(context.Background(), sets)
}

func (c *Config) ApplySets(ctx context.Context, sets setstore.SetStore) error {
	for name, dst := range map[string]*[]string{
		SetSpamPhrases:        &c.SpamPhrases,
		SetProfanity:          &c.Profanity,
		SetHarassmentPatterns: &c.HarassmentPatterns,
	} {
		l, err := sets.Members(ctx, name)
		if err != nil {
			return err
		}
		if l != nil {
			*dst = l
		}
	}
	return nil
}

// Checks all values and compiles harassment patterns. Must be called (and succeed) before the config is used.
func (c *Config) Validate() error {
	if len(c.SpamPhrases) == 0 {
		return fmt.Errorf("%w: spam phrase set is empty", ErrInvalidConfig)
	}
	if len(c.Profanity) == 0 {
		return fmt.Errorf("%w: profanity set is empty", ErrInvalidConfig)
	}
	if len(c.HarassmentPatterns) == 0 {
		return fmt.Errorf("%w: harassment pattern list is empty", ErrInvalidConfig)
	}
	compiled, err := analyzer.CompilePatterns(c.HarassmentPatterns)
	if err != nil {
		return fmt.Errorf("%w: harassment: %v", ErrInvalidConfig, err)
	}
	if c.CapsThreshold <= 0 || c.CapsThreshold > 1 {
		return fmt.Errorf("%w: caps threshold must be in (0, 1]: %v", ErrInvalidConfig, c.CapsThreshold)
	}
	if c.ShortTextWords < 0 {
		return fmt.Errorf("%w: short text word threshold is negative", ErrInvalidConfig)
	}
	for p, rl := range c.RateLimits {
		if _, err := engine.ParsePlatform(string(p)); err != nil {
			return fmt.Errorf("%w: rate limit: %v", ErrInvalidConfig, err)
		}
		if err := rl.validate(); err != nil {
			return fmt.Errorf("%w: rate limit for %s: %v", ErrInvalidConfig, p, err)
		}
	}
	if err := c.DefaultRateLimit.validate(); err != nil {
		return fmt.Errorf("%w: default rate limit: %v", ErrInvalidConfig, err)
	}
	if c.RateLimitMaxWait <= 0 {
		return fmt.Errorf("%w: rate limit max wait must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1", ErrInvalidConfig)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("%w: backoff base is negative", ErrInvalidConfig)
	}
	if c.QuotaDestructiveDay < 0 {
		return fmt.Errorf("%w: destructive quota is negative", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.InterPostDelay < 0 {
		return fmt.Errorf("%w: inter-post delay is negative", ErrInvalidConfig)
	}
	if c.MaxComments < 1 {
		return fmt.Errorf("%w: max comments must be at least 1", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	c.harassment = compiled
	return nil
}

func (rl RateLimit) validate() error {
	if rl.Requests < 1 {
		return fmt.Errorf("requests must be at least 1")
	}
	if rl.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	return nil
}

// Compiled harassment patterns. Nil until Validate has succeeded.
func (c *Config) Harassment() []analyzer.Pattern {
	return c.harassment
}

func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		SpamPhrases:    c.SpamPhrases,
		Profanity:      c.Profanity,
		Harassment:     c.harassment,
		CapsThreshold:  c.CapsThreshold,
		ShortTextWords: c.ShortTextWords,
	}
}

func (c *Config) LimiterOptions() ratelimit.Options {
	limits := make(map[string]ratelimit.Limit, len(c.RateLimits))
	for p, rl := range c.RateLimits {
		limits[string(p)] = ratelimit.Limit{Requests: rl.Requests, Window: rl.Window}
	}
	return ratelimit.Options{
		Limits:  limits,
		Default: ratelimit.Limit{Requests: c.DefaultRateLimit.Requests, Window: c.DefaultRateLimit.Window},
		MaxWait: c.RateLimitMaxWait,
	}
}
