package diagnosis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
)

// LabelColumn is the CSV column holding the disease label.
const LabelColumn = "benh"

// SymptomKeys is the feature ordering used by the synthetic dataset.
var SymptomKeys = []string{
	"sot", "ho", "dau_dau", "met_moi", "dau_bung", "dau_hong", "buon_non",
	"tieu_chay", "phat_ban", "kho_tho", "dau_nguc", "dau_khop", "chong_mat",
	"non_mua", "so_mui",
}

// Profile gives, for one disease, the probability that each symptom is present.
type Profile struct {
	Disease       string
	Probabilities map[string]float64
}

// DefaultProfiles are the per-disease symptom probabilities used to
// synthesize training data.
var DefaultProfiles = []Profile{
	{"Cảm cúm", map[string]float64{"sot": 0.9, "ho": 0.8, "dau_hong": 0.7, "so_mui": 0.6, "met_moi": 0.5, "dau_dau": 0.4}},
	{"Viêm phổi", map[string]float64{"sot": 0.9, "ho": 1.0, "kho_tho": 0.9, "dau_nguc": 0.7, "met_moi": 0.5}},
	{"Viêm phế quản", map[string]float64{"ho": 1.0, "kho_tho": 0.7, "dau_nguc": 0.5, "sot": 0.4}},
	{"Sốt xuất huyết", map[string]float64{"sot": 1.0, "dau_khop": 0.9, "phat_ban": 0.8, "dau_dau": 0.6, "buon_non": 0.5}},
	{"Nhiễm trùng đường tiết niệu", map[string]float64{"dau_bung": 0.8, "tieu_chay": 0.5, "sot": 0.4}},
	{"Viêm dạ dày", map[string]float64{"dau_bung": 1.0, "buon_non": 0.8, "non_mua": 0.6, "met_moi": 0.4}},
	{"Đau nửa đầu", map[string]float64{"dau_dau": 1.0, "met_moi": 0.6, "chong_mat": 0.5, "buon_non": 0.4}},
	{"Tăng huyết áp", map[string]float64{"dau_dau": 0.7, "chong_mat": 0.6, "dau_nguc": 0.4}},
	{"Viêm mũi dị ứng", map[string]float64{"so_mui": 1.0, "dau_hong": 0.5, "ho": 0.3}},
	{"Tiêu chảy cấp", map[string]float64{"tieu_chay": 1.0, "dau_bung": 0.9, "buon_non": 0.7, "sot": 0.5}},
	{"Viêm gan virus", map[string]float64{"sot": 0.8, "met_moi": 0.9, "buon_non": 0.7, "dau_bung": 0.6}},
	{"Đau thắt lưng", map[string]float64{"dau_khop": 1.0, "met_moi": 0.5}},
	{"Nhiễm trùng da", map[string]float64{"phat_ban": 1.0, "sot": 0.6, "dau_hong": 0.4}},
	{"Sỏi thận", map[string]float64{"dau_bung": 0.9, "tieu_chay": 0.4, "buon_non": 0.5}},
	{"Cường giáp", map[string]float64{"met_moi": 0.8, "chong_mat": 0.7, "sot": 0.5, "dau_dau": 0.4}},
}

// Dataset is a labelled set of binary symptom vectors.
type Dataset struct {
	Features []string
	X        [][]int
	Y        []string
}

func (d Dataset) Len() int { return len(d.Y) }

// Generate draws samplesPerDisease vectors for every profile.
func Generate(features []string, profiles []Profile, samplesPerDisease int, seed int64) Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := Dataset{Features: append([]string(nil), features...)}
	for _, p := range profiles {
		for s := 0; s < samplesPerDisease; s++ {
			row := make([]int, len(features))
			for i, f := range features {
				if rng.Float64() < p.Probabilities[f] {
					row[i] = 1
				}
			}
			ds.X = append(ds.X, row)
			ds.Y = append(ds.Y, p.Disease)
		}
	}
	return ds
}

// Split shuffles the dataset and holds out testFraction of it.
func (d Dataset) Split(testFraction float64, seed int64) (train, test Dataset) {
	perm := rand.New(rand.NewSource(seed)).Perm(d.Len())
	nTest := int(float64(d.Len()) * testFraction)
	train = Dataset{Features: d.Features}
	test = Dataset{Features: d.Features}
	for i, idx := range perm {
		if i < nTest {
			test.X = append(test.X, d.X[idx])
			test.Y = append(test.Y, d.Y[idx])
		} else {
			train.X = append(train.X, d.X[idx])
			train.Y = append(train.Y, d.Y[idx])
		}
	}
	return train, test
}

// WriteCSV writes the dataset with one column per feature followed by the label.
func (d Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), d.Features...), LabelColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for i, row := range d.X {
		for j, v := range row {
			record[j] = strconv.Itoa(v)
		}
		record[len(record)-1] = d.Y[i]
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a dataset written by WriteCSV. The label column may sit at
// any position; every other column is a binary feature.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}
	labelCol := -1
	var ds Dataset
	for i, h := range header {
		if h == LabelColumn {
			labelCol = i
			continue
		}
		ds.Features = append(ds.Features, h)
	}
	if labelCol < 0 {
		return Dataset{}, fmt.Errorf("dataset has no %q column", LabelColumn)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]int, 0, len(ds.Features))
		for i, cell := range rec {
			if i == labelCol {
				continue
			}
			v, err := strconv.Atoi(cell)
			if err != nil || (v != 0 && v != 1) {
				return Dataset{}, fmt.Errorf("line %d column %q: expected 0 or 1, got %q", line, header[i], cell)
			}
			row = append(row, v)
		}
		if rec[labelCol] == "" {
			return Dataset{}, fmt.Errorf("line %d: empty label", line)
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, rec[labelCol])
	}
	return ds, nil
}
