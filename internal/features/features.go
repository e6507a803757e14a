// Package features joins historical bloom records against the derived
// weather tables to produce the feature matrix consumed by the
// regression model.
package features

import (
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// EarliestWeatherYear is the first year with weather coverage; bloom
// records before it carry no usable features and are skipped.
const EarliestWeatherYear = 1940

// Tables holds the shared read-only weather and chill lookups. Daily
// records are kept sorted by date per location so windowed sums can
// binary-search their range.
type Tables struct {
	daily map[string][]models.DailyWeatherRecord
	chill map[string]map[int]int
}

// NewTables indexes the derived weather tables by location. The input
// slices are copied where ordering matters; callers may discard them
// afterwards.
func NewTables(daily []models.DailyWeatherRecord, chill []models.ChillAggregate) *Tables {
	t := &Tables{
		daily: make(map[string][]models.DailyWeatherRecord),
		chill: make(map[string]map[int]int),
	}
	for _, rec := range daily {
		t.daily[rec.Location] = append(t.daily[rec.Location], rec)
	}
	for _, recs := range t.daily {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].Date.Before(recs[j].Date)
		})
	}
	for _, agg := range chill {
		if t.chill[agg.Location] == nil {
			t.chill[agg.Location] = make(map[int]int)
		}
		t.chill[agg.Location][agg.ChillYear] = agg.ChillHours
	}
	return t
}

// LastDate returns the most recent daily weather date for a location,
// or false when the location has no coverage at all.
func (t *Tables) LastDate(location string) (time.Time, bool) {
	recs := t.daily[location]
	if len(recs) == 0 {
		return time.Time{}, false
	}
	return recs[len(recs)-1].Date, true
}

// FeatureRow builds the single feature row for one (location, year,
// bloom date) triple. The chill lookup and each of the three windowed
// sums are independent: a gap in one element never invalidates the
// others, and an empty window yields a null marker, never zero.
func (t *Tables) FeatureRow(rec models.BloomRecord) models.FeatureRow {
	row := models.FeatureRow{
		Location:  rec.Location,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Altitude:  rec.Altitude,
		Year:      rec.Year,
		BloomDate: rec.BloomDate,
		BloomDOY:  rec.BloomDOY,
	}

	if hours, ok := t.chill[rec.Location][rec.Year]; ok {
		row.ChillHours = sql.NullInt64{Int64: int64(hours), Valid: true}
	}

	window := t.window(rec.Location, rec.Year, rec.BloomDate)
	row.GDDSum = sumElement(window, func(d models.DailyWeatherRecord) float64 { return d.GDD })
	row.SunshineSum = sumElement(window, func(d models.DailyWeatherRecord) float64 { return d.SunshineHours })
	row.PrecipSum = sumElement(window, func(d models.DailyWeatherRecord) float64 { return d.Precipitation })
	return row
}

// window returns the daily records for location with dates in
// [Jan 1 of year, until] inclusive.
func (t *Tables) window(location string, year int, until time.Time) []models.DailyWeatherRecord {
	recs := t.daily[location]
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	lo := sort.Search(len(recs), func(i int) bool {
		return !recs[i].Date.Before(start)
	})
	hi := sort.Search(len(recs), func(i int) bool {
		return recs[i].Date.After(until)
	})
	if lo >= hi {
		return nil
	}
	return recs[lo:hi]
}

// sumElement sums one weather element over a window, skipping NaN
// gaps. A window with no valid value for the element is reported as
// null: zero coverage must stay distinguishable from a zero total.
func sumElement(window []models.DailyWeatherRecord, element func(models.DailyWeatherRecord) float64) sql.NullFloat64 {
	var sum float64
	valid := 0
	for _, d := range window {
		v := element(d)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		valid++
	}
	if valid == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: sum, Valid: true}
}

// Assemble produces one feature row per historical bloom record with
// weather coverage. Rows are independent of each other; the function
// is pure over its inputs.
func Assemble(records []models.BloomRecord, tables *Tables) []models.FeatureRow {
	var rows []models.FeatureRow
	for _, rec := range records {
		if rec.Year < EarliestWeatherYear {
			continue
		}
		rows = append(rows, tables.FeatureRow(rec))
	}
	return rows
}
