// Package refdata loads the read-only files the action server needs at
// startup: the classifier artifact, the symptom-key ordering, the formulary
// and optionally a lexicon override. Everything is validated together so a
// mismatch fails the process before it serves a request.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/domain/diagnosis"
	"github.com/medchat/medchat/internal/domain/formulary"
	"github.com/medchat/medchat/internal/domain/symptom"
)

// Paths names the files to load. LexiconPath is optional.
type Paths struct {
	Model       string
	Symptoms    string
	Medications string
	Lexicon     string
}

// Bundle is the immutable reference data shared by all requests.
type Bundle struct {
	Forest     *diagnosis.Forest
	Keys       []string
	Lexicon    *symptom.Lexicon
	Vectorizer *symptom.Vectorizer
	Formulary  *formulary.Formulary
}

func Load(p Paths, logger zerolog.Logger) (*Bundle, error) {
	for name, path := range map[string]string{
		"model":       p.Model,
		"symptoms":    p.Symptoms,
		"medications": p.Medications,
	} {
		if path == "" {
			return nil, fmt.Errorf("%s path is not configured", name)
		}
	}

	keys, err := LoadSymptomKeys(p.Symptoms)
	if err != nil {
		return nil, err
	}

	lex := symptom.DefaultLexicon()
	if p.Lexicon != "" {
		if lex, err = symptom.LoadLexicon(p.Lexicon); err != nil {
			return nil, err
		}
	}

	vec, err := symptom.NewVectorizer(keys, lex)
	if err != nil {
		return nil, fmt.Errorf("symptom list %s: %w", p.Symptoms, err)
	}

	forest, err := diagnosis.LoadForest(p.Model)
	if err != nil {
		return nil, err
	}
	if err := forest.CheckFeatures(keys); err != nil {
		return nil, fmt.Errorf("model %s: %w", p.Model, err)
	}

	form, err := formulary.Load(p.Medications)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("symptoms", len(keys)).
		Int("trees", len(forest.Trees)).
		Int("classes", len(forest.Classes)).
		Int("medications", len(form.Labels())).
		Bool("lexicon_override", p.Lexicon != "").
		Msg("reference data loaded")

	return &Bundle{Forest: forest, Keys: keys, Lexicon: lex, Vectorizer: vec, Formulary: form}, nil
}

// LoadSymptomKeys reads the JSON array of symptom keys that fixes feature
// order.
func LoadSymptomKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symptom list %s: %w", path, err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode symptom list %s: %w", path, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("symptom list %s is empty", path)
	}
	return keys, nil
}

// WriteSymptomKeys writes keys as a JSON array.
func WriteSymptomKeys(path string, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write symptom list %s: %w", path, err)
	}
	return nil
}
