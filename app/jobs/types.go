package jobs

import (
	"fmt"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

type Config struct {
	Name        string         // Derived from filename (without .yml extension)
	Subreddit   string         `yaml:"subreddit"`
	Community   string         `yaml:"community"`
	Settings    ConfigSettings `yaml:"settings"`
	Ignore      []string       `yaml:"ignore"` // nil means the default rule set
	CustomRules []CustomRule   `yaml:"custom_rules"`

	Rules []mirror.IgnoreRule `yaml:"-"`
}

type ConfigSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Interval int    `yaml:"interval"` // seconds
	Limit    int    `yaml:"limit"`
	Sort     string `yaml:"sort"`
	Delay    *int   `yaml:"delay"` // seconds, nil means default
	MaxPosts int    `yaml:"max_posts"`
	NSFW     bool   `yaml:"nsfw"`
}

// CustomRule suppresses items with Flair on every weekday except Weekday.
type CustomRule struct {
	Name    string `yaml:"name"`
	Flair   string `yaml:"flair"`
	Weekday string `yaml:"weekday"`
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Settings.Interval) * time.Second
}

func (c *Config) Delay() time.Duration {
	if c.Settings.Delay == nil {
		return defaultDelay * time.Second
	}
	return time.Duration(*c.Settings.Delay) * time.Second
}

// Job converts the file into a pipeline job.
func (c *Config) Job() mirror.Job {
	return mirror.Job{
		Name:      c.Name,
		Feed:      c.Subreddit,
		Community: c.Community,
		Limit:     c.Settings.Limit,
		Sort:      c.Settings.Sort,
		Delay:     c.Delay(),
		MaxPosts:  c.Settings.MaxPosts,
		NSFW:      c.Settings.NSFW,
		Rules:     append([]mirror.IgnoreRule(nil), c.Rules...),
	}
}

// RegisterCustomRules adds the job's flair rules to classifier.
func (c *Config) RegisterCustomRules(classifier *mirror.Classifier) error {
	for _, rule := range c.CustomRules {
		weekday, err := parseWeekday(rule.Weekday)
		if err != nil {
			return err
		}
		if err := classifier.RegisterRule(mirror.IgnoreRule(normalizeRuleName(rule.Name)), mirror.WeekdayFlairRule(rule.Flair, weekday)); err != nil {
			return fmt.Errorf("failed to register rule %s: %w", rule.Name, err)
		}
	}
	return nil
}
