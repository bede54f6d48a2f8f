// Package transcript corrects legal terminology in raw transcripts.
//
// Speech recognition reliably mangles terms of art: "habeas corpus" comes
// back as "have your corpus", "subpoena" as "sub pina". The [Corrector]
// aligns transcript tokens against a glossary of legal terms using Double
// Metaphone phonetic encoding with Jaro-Winkler ranking:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input tokens and for each glossary term. Overlapping codes make
//     the term a candidate.
//  2. Jaro-Winkler ranking: among candidates, the term with the highest
//     similarity to the original text wins, provided it clears the phonetic
//     threshold. Without any phonetic candidate, a pure string-similarity
//     fallback applies with a stricter threshold.
//
// Multi-word terms are handled by sliding an n-gram window over the
// transcript, longest windows first, so "restraining order" is matched as a
// unit before its words are considered individually.
package transcript

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Correction records one glossary substitution.
type Correction struct {
	// Original is the transcript text that was replaced.
	Original string `json:"original"`

	// Corrected is the glossary term substituted in.
	Corrected string `json:"corrected"`

	// Confidence is the similarity score behind the substitution, in
	// (0, 1].
	Confidence float64 `json:"confidence"`
}

// Result is a corrected transcript.
type Result struct {
	// Text is the transcript with glossary terms substituted.
	Text string `json:"text"`

	// Corrections lists the substitutions made, in transcript order.
	Corrections []Correction `json:"corrections,omitempty"`
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Corrector aligns transcripts against a glossary of legal terms. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	glossary          []string
	maxTermWords      int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector builds a Corrector over the given glossary. Empty glossary
// entries are dropped.
func NewCorrector(glossary []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, term := range glossary {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		c.glossary = append(c.glossary, term)
		if n := len(strings.Fields(term)); n > c.maxTermWords {
			c.maxTermWords = n
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// token is one whitespace-separated transcript token split into its word
// core and surrounding punctuation.
type token struct {
	prefix, core, suffix string
}

// Correct substitutes glossary terms for their phonetic near-matches in
// text. Already-correct terms are left untouched and not reported.
func (c *Corrector) Correct(text string) Result {
	if len(c.glossary) == 0 || strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}

	tokens := tokenize(text)
	out := make([]string, 0, len(tokens))
	var corrections []Correction

	for i := 0; i < len(tokens); {
		replaced := false

		// Longest window first so multi-word terms win over their parts.
		for n := min(c.maxTermWords, len(tokens)-i); n >= 1 && !replaced; n-- {
			phrase := joinCores(tokens[i : i+n])
			if phrase == "" {
				continue
			}

			term, score, ok := c.match(phrase)
			if !ok {
				continue
			}
			if strings.EqualFold(phrase, term) {
				// Already the right term; keep the speaker's casing.
				break
			}

			out = append(out, tokens[i].prefix+term+tokens[i+n-1].suffix)
			corrections = append(corrections, Correction{
				Original:   phrase,
				Corrected:  term,
				Confidence: score,
			})
			i += n
			replaced = true
		}

		if !replaced {
			tok := tokens[i]
			out = append(out, tok.prefix+tok.core+tok.suffix)
			i++
		}
	}

	return Result{Text: strings.Join(out, " "), Corrections: corrections}
}

// match finds the glossary term most phonetically similar to phrase.
// When matched is false, term is empty and score is 0.
func (c *Corrector) match(phrase string) (term string, score float64, matched bool) {
	phraseLower := strings.ToLower(phrase)
	phraseTokens := strings.Fields(phraseLower)
	inputCodes := codesForTokens(phraseTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, t := range c.glossary {
		termLower := strings.ToLower(t)
		termTokens := strings.Fields(termLower)

		phoneticMatch := codesOverlap(inputCodes, codesForTokens(termTokens))
		jwScore := phraseScore(phraseTokens, termTokens)

		if phoneticMatch {
			if jwScore >= c.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{term: t, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= c.fuzzyThreshold && jwScore > best.score {
				best = candidate{term: t, score: jwScore, phonetic: false}
			}
		}
	}

	if best.term == "" {
		return "", 0, false
	}
	return best.term, best.score, true
}

// tokenize splits text on whitespace and peels leading/trailing punctuation
// off each token.
func tokenize(text string) []token {
	fields := strings.Fields(text)
	tokens := make([]token, len(fields))
	for i, f := range fields {
		start := 0
		for start < len(f) && !isWordRune(rune(f[start])) {
			start++
		}
		end := len(f)
		for end > start && !isWordRune(rune(f[end-1])) {
			end--
		}
		tokens[i] = token{prefix: f[:start], core: f[start:end], suffix: f[end:]}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

// joinCores joins the word cores of a token window, or returns the empty
// string if any core is empty (pure punctuation breaks a phrase).
func joinCores(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		if t.core == "" {
			return ""
		}
		parts[i] = t.core
	}
	return strings.Join(parts, " ")
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

// codesOverlap returns true if the two code sets share at least one code.
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

// phraseScore computes the Jaro-Winkler similarity between a transcript
// phrase and a glossary term.
//
// Equal word counts are scored position by position and the weakest pair
// decides, so every word must align ("restraning order" scores high against
// "restraining order"; "a restraning" does not). Differing word counts use
// the space-stripped strings, which handles terms split or fused by the
// recognizer ("sub pina" against "subpoena").
func phraseScore(inputTokens, termTokens []string) float64 {
	if len(inputTokens) == len(termTokens) {
		score := 1.0
		for i := range inputTokens {
			s := matchr.JaroWinkler(inputTokens[i], termTokens[i], false)
			if s < score {
				score = s
			}
		}
		return score
	}

	concat1 := strings.Join(inputTokens, "")
	concat2 := strings.Join(termTokens, "")
	if concat1 == "" || concat2 == "" {
		return 0
	}
	return matchr.JaroWinkler(concat1, concat2, false)
}
