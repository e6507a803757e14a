// Package phenology turns volunteer phenology observations and
// published bloom archives into per-year bloom records.
package phenology

import (
	"math"
	"sort"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// unknownGap is the feed's sentinel for an unknown gap since the last
// still-closed observation. It must be read as zero days.
const unknownGap = -9999

// EstimateBloomRecords derives one BloomRecord per distinct year from
// the raw observations of a single site. Each observation's bloom date
// is estimated as the midpoint between the last known still-closed
// report and the first open-flower report; for a year with several
// trees the record takes the earliest estimated date and the earliest
// estimated day-of-year independently. Years without qualifying
// observations produce no record.
func EstimateBloomRecords(loc models.Location, observations []models.PhenologyObservation) []models.BloomRecord {
	type estimate struct {
		date time.Time
		doy  int
	}
	byYear := make(map[int][]estimate)

	for _, obs := range observations {
		gap := obs.DaysSincePrior
		if gap == unknownGap {
			gap = 0
		}
		firstYes := time.Date(obs.Year, time.Month(obs.Month), obs.Day, 0, 0, 0, 0, time.UTC)
		est := estimate{
			date: firstYes.Add(-time.Duration(gap) * 12 * time.Hour),
			doy:  int(math.Floor(float64(obs.DayOfYear) - float64(gap)/2)),
		}
		byYear[obs.Year] = append(byYear[obs.Year], est)
	}

	records := make([]models.BloomRecord, 0, len(byYear))
	for year, estimates := range byYear {
		rec := models.BloomRecord{
			Location:  loc.Key,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Altitude:  loc.Altitude,
			Year:      year,
			BloomDate: estimates[0].date,
			BloomDOY:  estimates[0].doy,
		}
		for _, est := range estimates[1:] {
			if est.date.Before(rec.BloomDate) {
				rec.BloomDate = est.date
			}
			if est.doy < rec.BloomDOY {
				rec.BloomDOY = est.doy
			}
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Year < records[j].Year })
	return records
}
