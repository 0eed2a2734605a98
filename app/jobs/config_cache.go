package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval = 600
	defaultLimit    = 10
	defaultDelay    = 30
)

type ConfigCache struct {
	jobsDir string
	cache   map[string]*Config
	mu      sync.RWMutex
}

func NewConfigCache(jobsDir string) *ConfigCache {
	return &ConfigCache{
		jobsDir: jobsDir,
		cache:   make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.jobsDir); os.IsNotExist(err) {
		slog.Warn("Jobs directory not found", "path", cc.jobsDir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.jobsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		jobName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(jobName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Job configuration loaded", "job", jobName, "subreddit", config.Subreddit, "community", config.Community, "enabled", config.Settings.Enabled, "interval", config.Settings.Interval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(jobName string) (*Config, error) {
	configFile := cc.getConfigFilePath(jobName)
	jobConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	jobConfig.Name = jobName

	if err := cc.validateConfig(jobConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[jobConfig.Name] = jobConfig

	return jobConfig, nil
}

func (cc *ConfigCache) GetConfig(jobName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	jobConfig, ok := cc.cache[jobName]
	if !ok {
		return nil, fmt.Errorf("job config with name '%s' not found", jobName)
	}
	return jobConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// Names returns the loaded job names in sorted order.
func (cc *ConfigCache) Names() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	names := make([]string, 0, len(cc.cache))
	for name := range cc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var jobConfig Config
	if err := yaml.Unmarshal(data, &jobConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	jobConfig.Subreddit = strings.TrimPrefix(strings.TrimSpace(jobConfig.Subreddit), "r/")
	jobConfig.Community = strings.TrimPrefix(strings.TrimSpace(jobConfig.Community), "!")

	if jobConfig.Settings.Interval == 0 {
		jobConfig.Settings.Interval = defaultInterval
	}
	if jobConfig.Settings.Limit == 0 {
		jobConfig.Settings.Limit = defaultLimit
	}
	if jobConfig.Settings.Sort == "" {
		jobConfig.Settings.Sort = string(mirror.SortNew)
	}
	if jobConfig.Settings.Delay == nil {
		delay := defaultDelay
		jobConfig.Settings.Delay = &delay
	}

	return &jobConfig, nil
}

func (cc *ConfigCache) validateConfig(jobConfig *Config) error {
	if jobConfig == nil {
		return errors.New("jobConfig is nil")
	}

	requiredFields := map[string]string{
		"job name":  jobConfig.Name,
		"subreddit": jobConfig.Subreddit,
		"community": jobConfig.Community,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"interval":  jobConfig.Settings.Interval,
		"limit":     jobConfig.Settings.Limit,
		"delay":     *jobConfig.Settings.Delay,
		"max posts": jobConfig.Settings.MaxPosts,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if jobConfig.Settings.Limit > mirror.MaxFetchLimit {
		slog.Warn("Limit above maximum, it will be clamped", "job", jobConfig.Name, "limit", jobConfig.Settings.Limit, "max", mirror.MaxFetchLimit)
	}

	if _, ok := mirror.ParseSortMode(jobConfig.Settings.Sort); !ok {
		slog.Warn("Unknown sort mode, falling back to new", "job", jobConfig.Name, "sort", jobConfig.Settings.Sort)
	}

	custom := make(map[mirror.IgnoreRule]bool, len(jobConfig.CustomRules))
	for i, rule := range jobConfig.CustomRules {
		name := mirror.IgnoreRule(normalizeRuleName(rule.Name))
		if name == "" {
			return fmt.Errorf("custom rule at index %d must have a name", i)
		}
		if mirror.IsReservedRule(name) {
			return fmt.Errorf("custom rule at index %d shadows built-in rule %s", i, name)
		}
		if custom[name] {
			return fmt.Errorf("duplicate custom rule %s", name)
		}
		if strings.TrimSpace(rule.Flair) == "" {
			return fmt.Errorf("custom rule %s must have a flair", name)
		}
		if _, err := parseWeekday(rule.Weekday); err != nil {
			return fmt.Errorf("custom rule %s: %w", name, err)
		}
		custom[name] = true
	}

	// Declared custom rules join the defaults when no rule list is given.
	if jobConfig.Ignore == nil {
		jobConfig.Rules = mirror.DefaultIgnoreRules()
		for _, rule := range jobConfig.CustomRules {
			jobConfig.Rules = append(jobConfig.Rules, mirror.IgnoreRule(normalizeRuleName(rule.Name)))
		}
		return nil
	}

	isCustom := func(rule mirror.IgnoreRule) bool { return custom[rule] }

	rules := make([]mirror.IgnoreRule, 0, len(jobConfig.Ignore))
	seen := make(map[mirror.IgnoreRule]bool, len(jobConfig.Ignore))
	for _, name := range jobConfig.Ignore {
		rule, err := mirror.ParseIgnoreRule(name, isCustom)
		if err != nil {
			return err
		}
		if seen[rule] {
			continue
		}
		seen[rule] = true
		rules = append(rules, rule)
	}
	jobConfig.Rules = rules

	return nil
}

func (cc *ConfigCache) getConfigFilePath(jobName string) string {
	return filepath.Join(cc.jobsDir, jobName+".yml")
}

func normalizeRuleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseWeekday accepts full or three-letter English day names.
func parseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if day, ok := weekdays[key]; ok {
		return day, nil
	}
	if len(key) == 3 {
		for name, day := range weekdays {
			if strings.HasPrefix(name, key) {
				return day, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
