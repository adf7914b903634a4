// Package symptom turns free-text Vietnamese symptom descriptions into the
// binary feature vectors the disease classifier was trained on.
package symptom

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Entry is one canonical symptom key with its surface-form variants.
type Entry struct {
	Key      string   `yaml:"key" json:"key"`
	Variants []string `yaml:"variants" json:"variants"`
}

type lexiconFile struct {
	Symptoms []Entry `yaml:"symptoms"`
}

// Lexicon maps canonical symptom keys to their ordered variants. It is
// read-only once built.
type Lexicon struct {
	entries []Entry
	index   map[string]int
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("symptom: embedded lexicon is invalid: %v", err))
	}
	return lex
}

// LoadLexicon reads a YAML lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := ParseLexicon(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

// ParseLexicon decodes a YAML lexicon document. Variants are stored
// NFC-normalized and lowercased so they compare against normalized input.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(f.Symptoms) == 0 {
		return nil, fmt.Errorf("lexicon has no symptoms")
	}

	lex := &Lexicon{index: make(map[string]int, len(f.Symptoms))}
	for _, e := range f.Symptoms {
		if e.Key == "" {
			return nil, fmt.Errorf("lexicon entry without key")
		}
		if _, dup := lex.index[e.Key]; dup {
			return nil, fmt.Errorf("duplicate symptom key %q", e.Key)
		}
		var variants []string
		for _, v := range e.Variants {
			v = Normalize(v)
			if v != "" {
				variants = append(variants, v)
			}
		}
		if len(variants) == 0 {
			return nil, fmt.Errorf("symptom key %q has no variants", e.Key)
		}
		lex.index[e.Key] = len(lex.entries)
		lex.entries = append(lex.entries, Entry{Key: e.Key, Variants: variants})
	}
	return lex, nil
}

// Keys returns the lexicon keys in declaration order.
func (l *Lexicon) Keys() []string {
	keys := make([]string, len(l.entries))
	for i, e := range l.entries {
		keys[i] = e.Key
	}
	return keys
}

// Variants returns the variants of key, or nil when the key is unknown.
func (l *Lexicon) Variants(key string) []string {
	i, ok := l.index[key]
	if !ok {
		return nil
	}
	out := make([]string, len(l.entries[i].Variants))
	copy(out, l.entries[i].Variants)
	return out
}

// Normalize folds text to the form used for matching: NFC, lowercase, trimmed.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(text)))
}
