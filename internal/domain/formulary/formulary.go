// Package formulary holds the static treatment guidance keyed by disease
// label, and the helpers used to resolve a disease name from chat text.
package formulary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/unicode/norm"
)

// DiseaseMarker is the word every displayed diagnosis starts with.
const DiseaseMarker = "bệnh"

//go:embed formulary.schema.json
var formularySchemaJSON []byte

var markerRun = regexp.MustCompile(`(?i)(` + DiseaseMarker + `\s*)+`)

// Entry is the treatment guidance for one disease.
type Entry struct {
	Drug         string `json:"thuoc"`
	Instructions string `json:"huong_dan"`
	Caution      string `json:"luu_y"`
}

// Formulary is an immutable disease -> Entry table that remembers the order
// diseases were listed in the source document.
type Formulary struct {
	labels  []string
	entries map[string]Entry
}

// Load reads a formulary JSON object from path.
func Load(path string) (*Formulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formulary %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("formulary %s: %w", path, err)
	}
	return f, nil
}

// Parse validates and decodes a formulary document, keeping key order.
func Parse(data []byte) (*Formulary, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(formularySchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile formulary schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate formulary: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid formulary: %s", strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode formulary: %w", err)
	}
	f := &Formulary{entries: make(map[string]Entry)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode formulary: %w", err)
		}
		label, _ := tok.(string)
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode entry %q: %w", label, err)
		}
		if _, dup := f.entries[label]; !dup {
			f.labels = append(f.labels, label)
		}
		f.entries[label] = e
	}
	return f, nil
}

// New builds a formulary from labels in order. Used for tests and tooling.
func New(labels []string, entries map[string]Entry) *Formulary {
	f := &Formulary{entries: make(map[string]Entry, len(entries))}
	for _, l := range labels {
		if e, ok := entries[l]; ok {
			f.labels = append(f.labels, l)
			f.entries[l] = e
		}
	}
	return f
}

// Labels returns the disease labels in document order.
func (f *Formulary) Labels() []string {
	return append([]string(nil), f.labels...)
}

// Lookup is an exact-key match; no case folding or marker stripping.
func (f *Formulary) Lookup(label string) (Entry, bool) {
	e, ok := f.entries[label]
	return e, ok
}

// FindInText returns the first label, in document order, whose lowercase form
// occurs in text once underscores in text are read as spaces.
func (f *Formulary) FindInText(text string) (string, bool) {
	haystack := strings.ReplaceAll(foldCase(text), "_", " ")
	for _, label := range f.labels {
		if strings.Contains(haystack, foldCase(label)) {
			return label, true
		}
	}
	return "", false
}

// NormalizeDiagnosis makes a label carry exactly one leading disease marker:
// repeated markers collapse and a missing marker is prepended.
func NormalizeDiagnosis(label string) string {
	label = norm.NFC.String(label)
	if strings.Count(strings.ToLower(label), DiseaseMarker) > 1 {
		label = strings.TrimSpace(markerRun.ReplaceAllString(label, DiseaseMarker+" "))
	}
	if !strings.Contains(strings.ToLower(label), DiseaseMarker) {
		label = DiseaseMarker + " " + label
	}
	return label
}

func foldCase(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
