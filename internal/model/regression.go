// Package model fits and applies the bloom-day regression. The model
// is ordinary least squares over location indicators, year and the
// seasonal aggregates; candidate feature sets are compared by
// leave-one-year-out cross-validation.
package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// Feature identifies one seasonal aggregate predictor.
type Feature string

const (
	FeatureChill    Feature = "chill_hours"
	FeatureGDD      Feature = "accumulative_gdd"
	FeatureSunshine Feature = "total_sunshine"
	FeaturePrecip   Feature = "total_precipitation"
)

// Candidate feature sets tried during model selection. All include
// location and year; hyperparameters are fixed.
var candidates = []struct {
	Name     string
	Features []Feature
}{
	{"full", []Feature{FeatureChill, FeatureGDD, FeatureSunshine, FeaturePrecip}},
	{"no_precip", []Feature{FeatureChill, FeatureGDD, FeatureSunshine}},
	{"thermal_only", []Feature{FeatureChill, FeatureGDD}},
}

// Model is a fitted bloom-day regression.
type Model struct {
	Name      string
	Features  []Feature
	Locations []string // one-hot columns; Locations[0] is the baseline
	Coeffs    []float64
}

// CVResult reports cross-validated accuracy for one candidate.
type CVResult struct {
	Name       string
	MAE        float64
	RMSE       float64
	SampleSize int
}

// featureValue returns the aggregate value for a row, reporting
// whether it is present.
func featureValue(row models.FeatureRow, f Feature) (float64, bool) {
	switch f {
	case FeatureChill:
		return float64(row.ChillHours.Int64), row.ChillHours.Valid
	case FeatureGDD:
		return row.GDDSum.Float64, row.GDDSum.Valid
	case FeatureSunshine:
		return row.SunshineSum.Float64, row.SunshineSum.Valid
	case FeaturePrecip:
		return row.PrecipSum.Float64, row.PrecipSum.Valid
	}
	return 0, false
}

// complete filters to rows carrying every predictor in the feature
// set. Rows with gaps are excluded rather than imputed.
func complete(rows []models.FeatureRow, features []Feature) []models.FeatureRow {
	var out []models.FeatureRow
	for _, row := range rows {
		ok := true
		for _, f := range features {
			if _, present := featureValue(row, f); !present {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func distinctLocations(rows []models.FeatureRow) []string {
	seen := make(map[string]bool)
	var locations []string
	for _, row := range rows {
		if !seen[row.Location] {
			seen[row.Location] = true
			locations = append(locations, row.Location)
		}
	}
	sort.Strings(locations)
	return locations
}

// designRow fills one row of the design matrix: intercept, location
// one-hot (baseline dropped), year, then the feature set in order.
func designRow(row models.FeatureRow, locations []string, features []Feature) []float64 {
	cols := make([]float64, 0, 2+len(locations)-1+len(features))
	cols = append(cols, 1)
	for _, loc := range locations[1:] {
		if row.Location == loc {
			cols = append(cols, 1)
		} else {
			cols = append(cols, 0)
		}
	}
	cols = append(cols, float64(row.Year))
	for _, f := range features {
		v, _ := featureValue(row, f)
		cols = append(cols, v)
	}
	return cols
}

// Fit solves the least-squares problem for one candidate feature set
// over the complete rows via QR factorization.
func Fit(name string, features []Feature, rows []models.FeatureRow) (*Model, error) {
	rows = complete(rows, features)
	locations := distinctLocations(rows)
	if len(locations) == 0 {
		return nil, fmt.Errorf("fit %s: no complete rows", name)
	}

	cols := 2 + len(locations) - 1 + len(features)
	if len(rows) <= cols {
		return nil, fmt.Errorf("fit %s: %d rows for %d coefficients", name, len(rows), cols)
	}

	X := mat.NewDense(len(rows), cols, nil)
	y := mat.NewVecDense(len(rows), nil)
	for i, row := range rows {
		X.SetRow(i, designRow(row, locations, features))
		y.SetVec(i, float64(row.BloomDOY))
	}

	var qr mat.QR
	qr.Factorize(X)

	solved := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(solved, false, y); err != nil {
		return nil, fmt.Errorf("fit %s: solve: %w", name, err)
	}

	coeffs := make([]float64, cols)
	for i := range coeffs {
		coeffs[i] = solved.AtVec(i)
	}
	return &Model{Name: name, Features: features, Locations: locations, Coeffs: coeffs}, nil
}

// Predict returns the estimated bloom day-of-year for one feature row,
// or false when the row is missing a predictor the model needs.
func (m *Model) Predict(row models.FeatureRow) (float64, bool) {
	for _, f := range m.Features {
		if _, present := featureValue(row, f); !present {
			return 0, false
		}
	}
	cols := designRow(row, m.Locations, m.Features)
	var pred float64
	for i, c := range m.Coeffs {
		pred += c * cols[i]
	}
	return pred, true
}

// CrossValidate scores one candidate by leave-one-year-out splits:
// every distinct year is held out once, the model is refit on the
// rest, and held-out rows are scored.
func CrossValidate(name string, features []Feature, rows []models.FeatureRow) (CVResult, error) {
	rows = complete(rows, features)

	years := make(map[int]bool)
	for _, row := range rows {
		years[row.Year] = true
	}

	var absErrs, sqErrs []float64
	for year := range years {
		var train, test []models.FeatureRow
		for _, row := range rows {
			if row.Year == year {
				test = append(test, row)
			} else {
				train = append(train, row)
			}
		}

		m, err := Fit(name, features, train)
		if err != nil {
			continue
		}
		for _, row := range test {
			pred, ok := m.Predict(row)
			if !ok {
				continue
			}
			diff := pred - float64(row.BloomDOY)
			absErrs = append(absErrs, math.Abs(diff))
			sqErrs = append(sqErrs, diff*diff)
		}
	}
	if len(absErrs) == 0 {
		return CVResult{}, fmt.Errorf("cross-validate %s: no scorable splits", name)
	}

	return CVResult{
		Name:       name,
		MAE:        stat.Mean(absErrs, nil),
		RMSE:       math.Sqrt(stat.Mean(sqErrs, nil)),
		SampleSize: len(absErrs),
	}, nil
}

// Select cross-validates every candidate, picks the lowest MAE, and
// refits the winner on all rows. The per-candidate results come back
// for reporting.
func Select(rows []models.FeatureRow) (*Model, []CVResult, error) {
	var results []CVResult
	bestIdx := -1
	for _, c := range candidates {
		result, err := CrossValidate(c.Name, c.Features, rows)
		if err != nil {
			continue
		}
		results = append(results, result)
		if bestIdx == -1 || result.MAE < results[bestIdx].MAE {
			bestIdx = len(results) - 1
		}
	}
	if bestIdx == -1 {
		return nil, nil, fmt.Errorf("select: no candidate could be cross-validated")
	}

	best := results[bestIdx]
	for _, c := range candidates {
		if c.Name == best.Name {
			m, err := Fit(c.Name, c.Features, rows)
			if err != nil {
				return nil, results, err
			}
			return m, results, nil
		}
	}
	return nil, results, fmt.Errorf("select: candidate %s vanished", best.Name)
}
