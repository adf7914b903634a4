package formulary

import (
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleDoc = `{
  "Viêm phổi": {"thuoc": "Amoxicillin", "huong_dan": "Theo đơn", "luu_y": "Khám ngay nếu khó thở"},
  "Cảm cúm": {"thuoc": "Paracetamol 500mg", "huong_dan": "4-6 giờ một lần", "luu_y": "Không quá liều"},
  "Cúm": {"thuoc": "Nghỉ ngơi"}
}`

func TestParse_PreservesOrder(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"Viêm phổi", "Cảm cúm", "Cúm"}
	if !reflect.DeepEqual(f.Labels(), want) {
		t.Errorf("expected labels %v, got %v", want, f.Labels())
	}
	e, ok := f.Lookup("Cảm cúm")
	if !ok {
		t.Fatal("expected Cảm cúm entry")
	}
	if e.Drug != "Paracetamol 500mg" || e.Instructions != "4-6 giờ một lần" || e.Caution != "Không quá liều" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not an object": `[]`,
		"empty object":  `{}`,
		"missing drug":  `{"Cảm cúm": {"huong_dan": "x"}}`,
		"wrong type":    `{"Cảm cúm": {"thuoc": 3}}`,
		"broken json":   `{"Cảm cúm":`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLookup_ExactMatchOnly(t *testing.T) {
	f, _ := Parse([]byte(sampleDoc))
	for _, label := range []string{"cảm cúm", "bệnh Cảm cúm", "Cảm cúm "} {
		if _, ok := f.Lookup(label); ok {
			t.Errorf("expected no entry for %q", label)
		}
	}
}

func TestFindInText(t *testing.T) {
	f, _ := Parse([]byte(sampleDoc))

	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"thuốc cho viêm_phổi là gì", "Viêm phổi", true},
		{"TÔI BỊ CẢM CÚM", "Cảm cúm", true},
		// "Cảm cúm" is listed before "Cúm", so it wins the overlap.
		{"cảm cúm nặng", "Cảm cúm", true},
		{"chỉ bị cúm thôi", "Cúm", true},
		{"xin chào", "", false},
	}
	for _, tt := range tests {
		got, ok := f.FindInText(tt.text)
		if ok != tt.found || got != tt.want {
			t.Errorf("FindInText(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.found)
		}
	}
}

func TestNormalizeDiagnosis(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"bệnh bệnh cảm cúm", "bệnh cảm cúm"},
		{"cảm cúm", "bệnh cảm cúm"},
		{"Cảm cúm", "bệnh Cảm cúm"},
		{"bệnh cảm cúm", "bệnh cảm cúm"},
		{"Bệnh Bệnh viêm phổi", "bệnh viêm phổi"},
		{"unknown", "bệnh unknown"},
	}
	for _, tt := range tests {
		if got := NormalizeDiagnosis(tt.in); got != tt.want {
			t.Errorf("NormalizeDiagnosis(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDiagnosis_Idempotent(t *testing.T) {
	for _, in := range []string{"cảm cúm", "bệnh bệnh bệnh sỏi thận", "Viêm gan virus"} {
		once := NormalizeDiagnosis(in)
		if twice := NormalizeDiagnosis(once); twice != once {
			t.Errorf("%q: normalizing twice gave %q, once gave %q", in, twice, once)
		}
	}
}

func TestLoad_ShippedData(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "..", "data", "medications.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Labels()) != 15 {
		t.Errorf("expected 15 diseases, got %d", len(f.Labels()))
	}
	if _, ok := f.Lookup("Sốt xuất huyết"); !ok {
		t.Error("expected Sốt xuất huyết entry")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "medications.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	f := New([]string{"b", "a", "missing"}, map[string]Entry{"a": {Drug: "x"}, "b": {Drug: "y"}})
	if !reflect.DeepEqual(f.Labels(), []string{"b", "a"}) {
		t.Errorf("unexpected labels %v", f.Labels())
	}
}
