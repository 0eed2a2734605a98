package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var galleryPattern = regexp.MustCompile(`^https://v\.redd\.it/[A-Za-z0-9]+/?$`)

// Signal is the outcome of one rule for one item. Value carries what matched
// (a url, a flair) so the decision can be logged.
type Signal struct {
	Matched bool
	Value   string
}

// CustomRule decides over (flair, now). A nil result means the rule does not apply.
type CustomRule func(flair string, now time.Time) *bool

type Classification struct {
	Candidate Candidate
	Mirrored  bool
	Signals   map[IgnoreRule]Signal
}

func (c Classification) TextOnly() bool {
	cand := c.Candidate
	return cand.Body != "" && cand.LinkURL == "" && cand.ImageURL == "" && !cand.Video && !cand.IsGallery
}

type evaluator func(c *Classification) Signal

func flag(v bool) Signal {
	return Signal{Matched: v}
}

var builtinEvaluators = map[IgnoreRule]evaluator{
	RuleMirrored: func(c *Classification) Signal { return Signal{Matched: c.Mirrored, Value: c.Candidate.SourceID} },
	RulePinned:   func(c *Classification) Signal { return flag(c.Candidate.Pinned) },
	RuleAdult:    func(c *Classification) Signal { return flag(c.Candidate.Adult) },
	RulePoll:     func(c *Classification) Signal { return flag(c.Candidate.Poll) },
	RuleLocked:   func(c *Classification) Signal { return flag(c.Candidate.Locked) },
	RuleVideo:    func(c *Classification) Signal { return flag(c.Candidate.Video) },
	RuleURL: func(c *Classification) Signal {
		return Signal{Matched: c.Candidate.LinkURL != "", Value: c.Candidate.LinkURL}
	},
	RuleFlair: func(c *Classification) Signal {
		return Signal{Matched: c.Candidate.Flair != "", Value: c.Candidate.Flair}
	},
	RuleTextOnly: func(c *Classification) Signal { return flag(c.TextOnly()) },
	RuleImage: func(c *Classification) Signal {
		return Signal{Matched: c.Candidate.ImageURL != "", Value: c.Candidate.ImageURL}
	},
	RuleGallery: func(c *Classification) Signal {
		if !c.Candidate.IsGallery {
			return Signal{}
		}
		return Signal{Matched: true, Value: c.Candidate.RawURL}
	},
}

type Classifier struct {
	prober ImageProber
	custom map[IgnoreRule]CustomRule
	now    func() time.Time
	logger *slog.Logger
}

func NewClassifier(prober ImageProber, logger *slog.Logger) *Classifier {
	return &Classifier{
		prober: prober,
		custom: make(map[IgnoreRule]CustomRule),
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the wall clock used by custom rules.
func (c *Classifier) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Classifier) RegisterRule(name IgnoreRule, rule CustomRule) error {
	if IsReservedRule(name) {
		return fmt.Errorf("rule %q is built-in", name)
	}
	if rule == nil {
		return fmt.Errorf("rule %q has no predicate", name)
	}
	c.custom[name] = rule
	return nil
}

// Known reports whether rule has an evaluator on this classifier.
func (c *Classifier) Known(rule IgnoreRule) bool {
	if IsBuiltinRule(rule) {
		return true
	}
	_, ok := c.custom[rule]
	return ok
}

func (c *Classifier) Classify(ctx context.Context, item SourceItem, ledger Ledger) Classification {
	return c.classify(ctx, item, ledger, false)
}

// classify computes every signal. With skipMirrored set, an item already in
// the ledger is not probed and its raw url counts as a link.
func (c *Classifier) classify(ctx context.Context, item SourceItem, ledger Ledger, skipMirrored bool) Classification {
	for _, attr := range item.Missing {
		c.logger.Info("Source attribute unavailable, treating as unset", "source_id", item.ID, "attribute", attr)
	}

	mirrored, err := ledger.Contains(ctx, item.ID)
	if err != nil {
		c.logger.Error("Ledger lookup failed, treating item as not mirrored", "source_id", item.ID, "error", err)
	}
	mirrored = mirrored && err == nil

	cand := Candidate{
		SourceID:  item.ID,
		Title:     item.Title,
		Body:      item.Body,
		RawURL:    absoluteURL(item.URL),
		Permalink: absoluteURL(item.Permalink),
		Flair:     strings.TrimSpace(item.Flair),
		Pinned:    item.Pinned,
		Adult:     item.Adult,
		Poll:      item.Poll,
		Locked:    item.Locked,
		Video:     item.Video,
	}
	c.resolveAttachment(ctx, item.ShortID(), &cand, !(skipMirrored && mirrored))

	result := Classification{
		Candidate: cand,
		Mirrored:  mirrored,
		Signals:   make(map[IgnoreRule]Signal, len(builtinEvaluators)+len(c.custom)),
	}

	for rule, eval := range builtinEvaluators {
		result.Signals[rule] = eval(&result)
	}

	now := c.now()
	for rule, predicate := range c.custom {
		verdict := predicate(cand.Flair, now)
		if verdict == nil {
			result.Signals[rule] = Signal{}
			continue
		}
		result.Signals[rule] = Signal{Matched: *verdict, Value: cand.Flair}
	}

	return result
}

// resolveAttachment classifies the raw url as self-post, gallery, image or external link.
func (c *Classifier) resolveAttachment(ctx context.Context, shortID string, cand *Candidate, probe bool) {
	raw := cand.RawURL
	if raw == "" {
		return
	}

	if isSelfLink(raw, shortID) {
		return
	}

	if galleryPattern.MatchString(raw) {
		cand.IsGallery = true
		return
	}

	if probe && c.prober != nil && c.prober.IsImage(ctx, raw) {
		cand.ImageURL = raw
		return
	}

	cand.LinkURL = raw
}

func isSelfLink(raw, shortID string) bool {
	if shortID == "" {
		return false
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	return strings.Contains(path, shortID)
}

// WeekdayFlairRule suppresses items carrying flair on every day except weekday.
func WeekdayFlairRule(flair string, weekday time.Weekday) CustomRule {
	return func(itemFlair string, now time.Time) *bool {
		if !strings.EqualFold(strings.TrimSpace(itemFlair), strings.TrimSpace(flair)) {
			return nil
		}
		suppress := now.Weekday() != weekday
		return &suppress
	}
}
