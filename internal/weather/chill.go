package weather

import (
	"sort"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// Chill hour temperature band, inclusive on both ends, in degrees C.
const (
	chillTempMin = 0.0
	chillTempMax = 7.0
)

// IsChillHour reports whether an hourly temperature counts toward
// dormancy chill accumulation. NaN never qualifies.
func IsChillHour(temp float64) bool {
	return temp >= chillTempMin && temp <= chillTempMax
}

// ChillYear assigns an hour to a winter season. The season spanning
// November(Y) through February(Y+1) is attributed entirely to chill
// year Y+1: November and December hours increment their calendar year,
// January and February keep theirs. Hours outside those four months
// belong to no season.
func ChillYear(year, month int) (int, bool) {
	switch month % 12 {
	case 11, 0: // Nov, Dec
		return year + 1, true
	case 1, 2: // Jan, Feb
		return year, true
	}
	return 0, false
}

// AggregateChill folds hourly temperatures into one ChillAggregate per
// (location, chill year), counting hours inside the chill band during
// the winter months. The result is sorted by chill year.
func AggregateChill(location string, hours []models.HourlyTemperatureRecord) []models.ChillAggregate {
	totals := make(map[int]int)
	for _, h := range hours {
		chillYear, ok := ChillYear(h.ObservedAt.Year(), int(h.ObservedAt.Month()))
		if !ok {
			continue
		}
		if _, seen := totals[chillYear]; !seen {
			totals[chillYear] = 0
		}
		if IsChillHour(h.Temp) {
			totals[chillYear]++
		}
	}

	aggregates := make([]models.ChillAggregate, 0, len(totals))
	for chillYear, count := range totals {
		aggregates = append(aggregates, models.ChillAggregate{
			Location:   location,
			ChillYear:  chillYear,
			ChillHours: count,
		})
	}
	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].ChillYear < aggregates[j].ChillYear
	})
	return aggregates
}
