// Package retrieval ranks schema snippets and business rules against a question by token overlap.
package retrieval

import (
	"context"
	"iter"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultK is the number of snippets retrieved when none is configured.
const DefaultK = 12

// DefaultBusinessRules are appended to the schema snippets on every retrieval.
var DefaultBusinessRules = []string{
	"active statuses: new, in_progress",
	"completed status: done, closed",
	"employees see own tasks; managers see subordinates",
}

// tokenPattern keeps hyphenated compounds as one token and matches any script.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_-]+`)

// Tokenize returns the lowercase word tokens of text in order.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Score counts the distinct query tokens that occur in candidate.
func Score(queryTokens []string, candidate string) int {
	present := make(map[string]struct{})
	for _, tok := range Tokenize(candidate) {
		present[tok] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	score := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := present[tok]; ok {
			score++
		}
	}
	return score
}

// SnippetSource yields schema snippets, typically *catalog.Catalog.
type SnippetSource interface {
	Snippets(ctx context.Context) iter.Seq[string]
}

// Retriever ranks catalog snippets and business rules for a question.
type Retriever struct {
	source SnippetSource
	rules  []string
	logger *zap.Logger
}

// NewRetriever creates a retriever. A nil rules slice selects DefaultBusinessRules.
func NewRetriever(source SnippetSource, rules []string, logger *zap.Logger) *Retriever {
	if rules == nil {
		rules = DefaultBusinessRules
	}
	return &Retriever{source: source, rules: rules, logger: logger.Named("retrieval")}
}

type candidate struct {
	text  string
	score int
}

// Retrieve returns the top k candidates by descending score. Candidates with
// equal scores keep enumeration order: schema snippets first, then rules.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) []string {
	if k <= 0 {
		k = DefaultK
	}
	queryTokens := Tokenize(question)

	var corpus []candidate
	for s := range r.source.Snippets(ctx) {
		corpus = append(corpus, candidate{text: s, score: Score(queryTokens, s)})
	}
	for _, rule := range r.rules {
		corpus = append(corpus, candidate{text: rule, score: Score(queryTokens, rule)})
	}

	sort.SliceStable(corpus, func(i, j int) bool {
		return corpus[i].score > corpus[j].score
	})

	if len(corpus) > k {
		corpus = corpus[:k]
	}
	out := make([]string, len(corpus))
	for i, c := range corpus {
		out[i] = c.text
	}

	r.logger.Debug("Retrieved context",
		zap.Int("query_tokens", len(queryTokens)),
		zap.Int("returned", len(out)))
	return out
}
