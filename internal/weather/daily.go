package weather

import (
	"math"
	"sort"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// gddBaseTemp is the base temperature for growing-degree-day
// accumulation, in degrees C.
const gddBaseTemp = 10.0

// RawDay is one day of weather as returned by an upstream source.
// Fields are pointers so that nulls in the feed survive parsing;
// BuildDaily turns them into NaN.
type RawDay struct {
	Date            time.Time
	TempMax         *float64
	TempMin         *float64
	SunshineSeconds *float64
	Precipitation   *float64
}

// GrowingDegreeDay computes the daily heat accumulation above the base
// temperature. The result is never negative and is NaN when either
// temperature is missing.
func GrowingDegreeDay(tempMax, tempMin float64) float64 {
	if math.IsNaN(tempMax) || math.IsNaN(tempMin) {
		return math.NaN()
	}
	gdd := (tempMax+tempMin)/2 - gddBaseTemp
	if gdd < 0 {
		return 0
	}
	return gdd
}

// SunshineHours converts a sunshine duration from seconds to hours.
// NaN propagates.
func SunshineHours(seconds float64) float64 {
	return seconds / 3600
}

// BuildDaily derives one DailyWeatherRecord per calendar date from a
// historical range plus an optional forecast tail. When the two ranges
// overlap, the historical value wins; forecast days fill only dates
// beyond the historical cutoff. The result is sorted by date.
func BuildDaily(location string, history, forecast []RawDay) []models.DailyWeatherRecord {
	byDate := make(map[string]models.DailyWeatherRecord)
	for _, d := range forecast {
		byDate[dateKey(d.Date)] = derive(location, d)
	}
	for _, d := range history {
		byDate[dateKey(d.Date)] = derive(location, d)
	}

	records := make([]models.DailyWeatherRecord, 0, len(byDate))
	for _, rec := range byDate {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records
}

func derive(location string, d RawDay) models.DailyWeatherRecord {
	date := time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC)
	rec := models.DailyWeatherRecord{
		Location:      location,
		Date:          date,
		TempMax:       value(d.TempMax),
		TempMin:       value(d.TempMin),
		SunshineHours: SunshineHours(value(d.SunshineSeconds)),
		Precipitation: value(d.Precipitation),
		Year:          date.Year(),
	}
	rec.GDD = GrowingDegreeDay(rec.TempMax, rec.TempMin)
	return rec
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
