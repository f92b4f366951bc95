// Package classifier decides which extraction strategy applies to a
// document by matching configured keyword rules against its leading text.
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
)

// LeadingPages is how many pages of a document are inspected.
const LeadingPages = 2

// Classifier evaluates rules in order; the first one that holds wins and
// documents matching none go to the remote extractor.
//
// All rule keywords are compiled into one Aho-Corasick automaton, so the
// leading text is scanned once regardless of how many rules exist.
type Classifier struct {
	rules    []Rule
	text     document.TextExtractor
	fallback extraction.ID
	logger   *slog.Logger

	matcher *ahocorasick.Matcher
	// ruleKeywords holds, per rule, the automaton indexes of its keywords
	ruleKeywords [][]int
}

// New creates a classifier. fallback is used when no rule matches or the
// document text cannot be read.
func New(rules []Rule, text document.TextExtractor, fallback extraction.ID, logger *slog.Logger) *Classifier {
	c := &Classifier{
		rules:    rules,
		text:     text,
		fallback: fallback,
		logger:   logger,
	}

	index := make(map[string]int)
	var patterns [][]byte
	c.ruleKeywords = make([][]int, len(rules))
	for i, rule := range rules {
		for _, k := range rule.Keywords {
			k = strings.ToLower(k)
			idx, ok := index[k]
			if !ok {
				idx = len(patterns)
				index[k] = idx
				patterns = append(patterns, []byte(k))
			}
			c.ruleKeywords[i] = append(c.ruleKeywords[i], idx)
		}
	}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewMatcher(patterns)
	}

	return c
}

// Classify reads the first pages of doc and returns the extractor to use.
// It never fails: unreadable documents fall back to the remote extractor.
func (c *Classifier) Classify(ctx context.Context, doc document.Document) extraction.ID {
	text, err := c.text.Text(ctx, doc, LeadingPages)
	if err != nil {
		c.logger.Warn("failed to read document for classification, using remote extractor",
			slog.String("path", doc.Path),
			slog.Any("error", err))
		return c.fallback
	}

	id, ok := c.Match(text.Joined())
	if !ok {
		c.logger.Debug("no rule matched, using remote extractor", slog.String("path", doc.Path))
		return c.fallback
	}

	c.logger.Debug("document classified",
		slog.String("path", doc.Path),
		slog.String("extractor", string(id)))
	return id
}

// Match applies the rules to text and returns the first matching rule's
// extractor.
func (c *Classifier) Match(text string) (extraction.ID, bool) {
	if c.matcher == nil {
		return "", false
	}

	// Match mutates the automaton's counters; one Classifier serves
	// concurrent submissions.
	hits := make(map[int]bool)
	for _, idx := range c.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
		hits[idx] = true
	}
	if len(hits) == 0 {
		return "", false
	}

	for i, rule := range c.rules {
		if holds(c.ruleKeywords[i], hits, rule.MatchAll) {
			return rule.Extractor, true
		}
	}
	return "", false
}

func holds(keywords []int, hits map[int]bool, matchAll bool) bool {
	if matchAll {
		for _, k := range keywords {
			if !hits[k] {
				return false
			}
		}
		return len(keywords) > 0
	}
	for _, k := range keywords {
		if hits[k] {
			return true
		}
	}
	return false
}
