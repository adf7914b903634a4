package symptom

import (
	"fmt"
	"regexp"
)

// wordRunes matches the characters that continue a word. Combining marks are
// included so a boundary is never placed inside a decomposed letter.
const wordRunes = `\p{L}\p{M}\p{N}_`

// Result is the outcome of vectorizing one message.
type Result struct {
	// Vector holds 1 at the index of every symptom key that matched.
	Vector []int `json:"vector"`
	// Matched lists the first matching variant of each matched key, in key order.
	Matched []string `json:"matched"`
}

// Detected reports whether at least one symptom was recognized.
func (r Result) Detected() bool {
	for _, v := range r.Vector {
		if v == 1 {
			return true
		}
	}
	return false
}

type matcher struct {
	variant string
	re      *regexp.Regexp
}

// Vectorizer converts text into a presence vector over a fixed key ordering.
type Vectorizer struct {
	keys     []string
	matchers [][]matcher
}

// NewVectorizer builds a vectorizer whose feature order is keys. Every key
// must exist in the lexicon; a missing key would shift feature indices
// relative to the classifier.
func NewVectorizer(keys []string, lex *Lexicon) (*Vectorizer, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no symptom keys")
	}
	v := &Vectorizer{
		keys:     append([]string(nil), keys...),
		matchers: make([][]matcher, len(keys)),
	}
	seen := make(map[string]bool, len(keys))
	for i, key := range keys {
		if seen[key] {
			return nil, fmt.Errorf("duplicate symptom key %q", key)
		}
		seen[key] = true

		variants := lex.Variants(key)
		if variants == nil {
			return nil, fmt.Errorf("symptom key %q is not in the lexicon", key)
		}
		for _, variant := range variants {
			re, err := regexp.Compile(`(?:^|[^` + wordRunes + `])` + regexp.QuoteMeta(variant) + `(?:$|[^` + wordRunes + `])`)
			if err != nil {
				return nil, fmt.Errorf("compile variant %q: %w", variant, err)
			}
			v.matchers[i] = append(v.matchers[i], matcher{variant: variant, re: re})
		}
	}
	return v, nil
}

// Keys returns the feature ordering.
func (v *Vectorizer) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Vectorize normalizes text and tests each key's variants as whole words.
func (v *Vectorizer) Vectorize(text string) Result {
	text = Normalize(text)
	res := Result{Vector: make([]int, len(v.keys))}
	for i, ms := range v.matchers {
		for _, m := range ms {
			if m.re.MatchString(text) {
				res.Vector[i] = 1
				res.Matched = append(res.Matched, m.variant)
				break
			}
		}
	}
	return res
}
