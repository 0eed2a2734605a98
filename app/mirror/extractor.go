package mirror

import (
	"context"
	"log/slog"
)

type Extractor struct {
	classifier *Classifier
	logger     *slog.Logger
}

func NewExtractor(classifier *Classifier, logger *slog.Logger) *Extractor {
	return &Extractor{
		classifier: classifier,
		logger:     logger,
	}
}

// Extract classifies items in source order and keeps those no active rule matches.
func (e *Extractor) Extract(ctx context.Context, items []SourceItem, ledger Ledger, rules []IgnoreRule) []Candidate {
	active := make([]IgnoreRule, 0, len(rules))
	skipMirrored := false
	for _, rule := range rules {
		if !e.classifier.Known(rule) {
			e.logger.Warn("Unknown ignore rule, skipping", "rule", string(rule))
			continue
		}
		active = append(active, rule)
		skipMirrored = skipMirrored || rule == RuleMirrored
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			e.logger.Error("Source item without id, skipping", "title", item.Title)
			continue
		}

		classification := e.classifier.classify(ctx, item, ledger, skipMirrored)

		ignored := false
		for _, rule := range active {
			signal := classification.Signals[rule]
			if !signal.Matched {
				continue
			}
			ignored = true
			e.logger.Info("Item ignored", "source_id", item.ID, "rule", string(rule), "value", signal.Value)
		}
		if ignored {
			continue
		}

		candidates = append(candidates, classification.Candidate)
	}

	return candidates
}
