package diagnosis

import "fmt"

// ClassReport holds one-vs-rest metrics for a single disease.
type ClassReport struct {
	Label       string  `json:"label"`
	Support     int     `json:"support"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
}

// Report summarizes a hold-out evaluation.
type Report struct {
	Samples  int           `json:"samples"`
	Accuracy float64       `json:"accuracy"`
	Classes  []ClassReport `json:"classes"`
}

// Evaluate predicts every test sample and builds a confusion-matrix report.
// Classes absent from the test set get zero support and zero sensitivity.
func Evaluate(f *Forest, test Dataset) (Report, error) {
	if test.Len() == 0 {
		return Report{}, fmt.Errorf("empty test set")
	}
	idx := make(map[string]int, len(f.Classes))
	for i, c := range f.Classes {
		idx[c] = i
	}

	k := len(f.Classes)
	confusion := make([][]int, k)
	for i := range confusion {
		confusion[i] = make([]int, k)
	}

	correct := 0
	for i, row := range test.X {
		pred, err := f.Predict(row)
		if err != nil {
			return Report{}, fmt.Errorf("sample %d: %w", i, err)
		}
		actual, ok := idx[test.Y[i]]
		if !ok {
			return Report{}, fmt.Errorf("sample %d: label %q unknown to the model", i, test.Y[i])
		}
		confusion[actual][idx[pred]]++
		if pred == test.Y[i] {
			correct++
		}
	}

	total := test.Len()
	rep := Report{Samples: total, Accuracy: float64(correct) / float64(total)}
	for c := 0; c < k; c++ {
		tp := confusion[c][c]
		rowSum, colSum := 0, 0
		for j := 0; j < k; j++ {
			rowSum += confusion[c][j]
			colSum += confusion[j][c]
		}
		cr := ClassReport{Label: f.Classes[c], Support: rowSum}
		if rowSum > 0 {
			cr.Sensitivity = float64(tp) / float64(rowSum)
		}
		negatives := total - rowSum
		if negatives > 0 {
			tn := total - rowSum - colSum + tp
			cr.Specificity = float64(tn) / float64(negatives)
		}
		rep.Classes = append(rep.Classes, cr)
	}
	return rep, nil
}
