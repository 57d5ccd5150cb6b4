// Package intent resolves what a spoken utterance asks the assistant to do:
// navigate the dashboard, generate a document, or simply converse.
//
// Resolution runs in two layers. The [Classifier] asks the chat collaborator
// for a structured verdict; the keyword [Matcher] resolves spoken section
// names phonetically and serves as the deterministic fallback when the
// remote call fails or returns garbage, so the assistant always produces a
// usable intent.
package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched section to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher resolves a spoken phrase to a dashboard section. Transcription
// mangles French section names freely ("courrier", "courier", "couriers"),
// so exact matching is useless; the matcher combines Double Metaphone
// phonetic candidate filtering with Jaro-Winkler ranking instead.
//
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher configured with the supplied options.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the section whose label or keywords best fit the spoken
// phrase. When matched is false the phrase hit nothing and section is the
// zero value.
func (m *Matcher) Match(phrase string, sections []Section) (section Section, confidence float64, matched bool) {
	phraseLower := strings.ToLower(strings.TrimSpace(phrase))
	if phraseLower == "" || len(sections) == 0 {
		return Section{}, 0, false
	}
	phraseTokens := strings.Fields(phraseLower)
	phraseCodes := codesForTokens(phraseTokens)

	var (
		best         Section
		bestScore    float64
		bestPhonetic bool
		found        bool
	)

	for _, sec := range sections {
		score, phonetic := m.scoreSection(phraseLower, phraseTokens, phraseCodes, sec)
		if score == 0 {
			continue
		}
		// Phonetic hits outrank fuzzy-only hits regardless of raw score.
		if phonetic && (!bestPhonetic || score > bestScore) {
			best, bestScore, bestPhonetic, found = sec, score, true, true
		} else if !phonetic && !bestPhonetic && score > bestScore {
			best, bestScore, found = sec, score, true
		}
	}

	if !found {
		return Section{}, 0, false
	}
	return best, bestScore, true
}

// scoreSection returns the best accepted score for the section across its
// label and all its keywords, and whether that score came from a phonetic
// candidate. A zero score means no variant cleared its threshold.
func (m *Matcher) scoreSection(phrase string, phraseTokens []string, phraseCodes map[string]struct{}, sec Section) (float64, bool) {
	variants := make([]string, 0, len(sec.Keywords)+1)
	variants = append(variants, sec.Label)
	variants = append(variants, sec.Keywords...)

	var (
		bestScore    float64
		bestPhonetic bool
	)
	for _, v := range variants {
		variantLower := strings.ToLower(strings.TrimSpace(v))
		if variantLower == "" {
			continue
		}
		variantTokens := strings.Fields(variantLower)
		phonetic := codesOverlap(phraseCodes, codesForTokens(variantTokens))

		score := bestJWScore(phraseTokens, variantTokens, phrase, variantLower)
		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestScore, bestPhonetic = score, true
			}
		case !phonetic && score >= m.fuzzyThreshold:
			if !bestPhonetic && score > bestScore {
				bestScore = score
			}
		}
	}
	return bestScore, bestPhonetic
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the
// phrase and the variant using three strategies: full strings, space-stripped
// strings, and the best pairwise token score.
func bestJWScore(phraseTokens, variantTokens []string, phraseFull, variantFull string) float64 {
	score := matchr.JaroWinkler(phraseFull, variantFull, false)

	if len(phraseTokens) > 1 || len(variantTokens) > 1 {
		concat1 := strings.Join(phraseTokens, "")
		concat2 := strings.Join(variantTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, pt := range phraseTokens {
		for _, vt := range variantTokens {
			if s := matchr.JaroWinkler(pt, vt, false); s > score {
				score = s
			}
		}
	}

	return score
}
