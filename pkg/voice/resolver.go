package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/chriscow/voicemart/pkg/catalog"
)

// DefaultMinConfidence is the lowest score a match is accepted at.
const DefaultMinConfidence = 30

const (
	scoreExact     = 100
	scoreSubstring = 90
	scoreTokensMax = 80
)

// Match is the best-scoring product for a fragment.
type Match struct {
	Product catalog.Product
	Score   int // 0-100
}

// Resolver fuzzy-matches spoken product names against the catalog.
type Resolver struct {
	source   catalog.Source
	minScore int
}

// NewResolver creates a resolver over source accepting matches scoring at
// least minScore.
func NewResolver(source catalog.Source, minScore int) *Resolver {
	return &Resolver{source: source, minScore: minScore}
}

// MinScore is the acceptance threshold.
func (r *Resolver) MinScore() int {
	return r.minScore
}

// Snapshot reads the catalog. Nothing is cached between calls.
func (r *Resolver) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	snap, err := r.source.Snapshot(ctx)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("read catalog: %w", err)
	}
	return snap, nil
}

// Product reads one product by ID.
func (r *Resolver) Product(ctx context.Context, id string) (catalog.Product, error) {
	return catalog.Lookup(ctx, r.source, id)
}

// Resolve returns the best match for fragment in the current catalog and
// whether it clears the threshold. A miss is not an error.
func (r *Resolver) Resolve(ctx context.Context, fragment string) (Match, bool, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return Match{}, false, err
	}
	m, ok := ResolveIn(snap, fragment, r.minScore)
	return m, ok, nil
}

// ResolveIn scores every product in snap and returns the highest. Ties go to
// the first product in category order, then product order. ok is false when
// the best score is below minScore or the catalog is empty.
func ResolveIn(snap catalog.Snapshot, fragment string, minScore int) (best Match, ok bool) {
	frag := NormalizeName(fragment)
	if frag == "" {
		return Match{}, false
	}
	tokens := strings.Fields(frag)

	found := false
	snap.Each(func(p catalog.Product) bool {
		sc := score(frag, tokens, NormalizeName(p.Name))
		if !found || sc > best.Score {
			best = Match{Product: p, Score: sc}
			found = true
		}
		return best.Score < scoreExact
	})

	return best, found && best.Score >= minScore
}

// Score rates how well fragment names a product called name.
//
//	exact match         100
//	substring of name    90
//	otherwise           80 * (fragment tokens found in name) / (fragment tokens)
func Score(fragment, name string) int {
	frag := NormalizeName(fragment)
	if frag == "" {
		return 0
	}
	return score(frag, strings.Fields(frag), NormalizeName(name))
}

func score(frag string, tokens []string, name string) int {
	switch {
	case name == "":
		return 0
	case frag == name:
		return scoreExact
	case strings.Contains(name, frag):
		return scoreSubstring
	}

	hits := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			hits++
		}
	}
	return hits * scoreTokensMax / len(tokens)
}

// NormalizeName lower-cases s, drops every character outside [a-z0-9] and
// whitespace, and collapses whitespace.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\f', r == '\v':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
