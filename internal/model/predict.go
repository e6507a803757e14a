package model

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// Predictions applies a fitted model to prediction-year feature rows,
// rounding to the nearest whole day-of-year. Rows missing a predictor
// are skipped with ok=false accounting left to the caller via the
// returned skipped list.
func Predictions(m *Model, rows []models.FeatureRow) (preds []models.Prediction, skipped []string) {
	for _, row := range rows {
		v, ok := m.Predict(row)
		if !ok {
			skipped = append(skipped, row.Location)
			continue
		}
		preds = append(preds, models.Prediction{
			Location: row.Location,
			BloomDOY: int(math.Round(v)),
		})
	}
	return preds, skipped
}

// WritePredictions emits the final delimited output file with columns
// location, prediction.
func WritePredictions(path string, preds []models.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create predictions file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"location", "prediction"}); err != nil {
		return fmt.Errorf("write predictions header: %w", err)
	}
	for _, p := range preds {
		if err := w.Write([]string{p.Location, strconv.Itoa(p.BloomDOY)}); err != nil {
			return fmt.Errorf("write prediction for %s: %w", p.Location, err)
		}
	}
	w.Flush()
	return w.Error()
}
