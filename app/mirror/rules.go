package mirror

import (
	"errors"
	"fmt"
	"strings"
)

type IgnoreRule string

const (
	RuleMirrored IgnoreRule = "mirrored"
	RulePinned   IgnoreRule = "pinned"
	RuleAdult    IgnoreRule = "nsfw"
	RulePoll     IgnoreRule = "poll"
	RuleLocked   IgnoreRule = "locked"
	RuleVideo    IgnoreRule = "video"
	RuleURL      IgnoreRule = "url"
	RuleFlair    IgnoreRule = "flair"
	RuleTextOnly IgnoreRule = "body"
	RuleImage    IgnoreRule = "image"
	RuleGallery  IgnoreRule = "gallery"
)

var ErrUnknownRule = errors.New("unknown ignore rule")

var ruleAliases = map[string]IgnoreRule{
	"adult":          RuleAdult,
	"has-url":        RuleURL,
	"has-flair":      RuleFlair,
	"text-only-body": RuleTextOnly,
	"has-image":      RuleImage,
	"is-gallery":     RuleGallery,
}

// DefaultIgnoreRules is applied when a job does not list its own rules.
func DefaultIgnoreRules() []IgnoreRule {
	return []IgnoreRule{RuleMirrored, RulePinned, RuleAdult, RulePoll, RuleLocked, RuleVideo, RuleURL}
}

func IsBuiltinRule(rule IgnoreRule) bool {
	_, ok := builtinEvaluators[rule]
	return ok
}

// IsReservedRule reports whether rule is a built-in name or an alias of one.
func IsReservedRule(rule IgnoreRule) bool {
	if IsBuiltinRule(rule) {
		return true
	}
	_, ok := ruleAliases[string(rule)]
	return ok
}

// ParseIgnoreRule resolves a configured name to a rule. Names that are neither
// built-in nor aliases are accepted only when custom reports them as known.
func ParseIgnoreRule(name string, custom func(IgnoreRule) bool) (IgnoreRule, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := ruleAliases[key]; ok {
		return alias, nil
	}

	rule := IgnoreRule(key)
	if IsBuiltinRule(rule) {
		return rule, nil
	}
	if custom != nil && custom(rule) {
		return rule, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownRule, name)
}
