package phenology

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// LoadObservations reads a USA-NPN individual phenometrics export.
// Column positions are resolved from the header row so the loader
// survives the feed adding columns.
func LoadObservations(path string) ([]models.PhenologyObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phenology export: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read phenology header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"Site_ID", "Species_ID", "First_Yes_Year", "First_Yes_Month", "First_Yes_Day", "First_Yes_DOY", "NumDays_Since_Prior_No"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("phenology export missing column %q", name)
		}
	}

	var observations []models.PhenologyObservation
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read phenology line %d: %w", line, err)
		}

		obs := models.PhenologyObservation{}
		fields := []struct {
			name string
			dst  *int
		}{
			{"Site_ID", &obs.SiteID},
			{"Species_ID", &obs.SpeciesID},
			{"First_Yes_Year", &obs.Year},
			{"First_Yes_Month", &obs.Month},
			{"First_Yes_Day", &obs.Day},
			{"First_Yes_DOY", &obs.DayOfYear},
			{"NumDays_Since_Prior_No", &obs.DaysSincePrior},
		}
		for _, field := range fields {
			v, err := strconv.Atoi(record[col[field.name]])
			if err != nil {
				return nil, fmt.Errorf("phenology line %d: parse %s: %w", line, field.name, err)
			}
			*field.dst = v
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// LoadBloomRecords reads a published peak-bloom archive with columns
// location, lat, long, alt, year, bloom_date, bloom_doy.
func LoadBloomRecords(path string) ([]models.BloomRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bloom archive: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read bloom archive header: %w", err)
	}

	var records []models.BloomRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bloom archive line %d: %w", line, err)
		}
		if len(row) < 7 {
			return nil, fmt.Errorf("bloom archive line %d: want 7 columns, got %d", line, len(row))
		}

		rec := models.BloomRecord{Location: row[0]}
		if rec.Latitude, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse lat: %w", line, err)
		}
		if rec.Longitude, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse long: %w", line, err)
		}
		if rec.Altitude, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse alt: %w", line, err)
		}
		if rec.Year, err = strconv.Atoi(row[4]); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse year: %w", line, err)
		}
		if rec.BloomDate, err = time.Parse("2006-01-02", row[5]); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse bloom_date: %w", line, err)
		}
		if rec.BloomDOY, err = strconv.Atoi(row[6]); err != nil {
			return nil, fmt.Errorf("bloom archive line %d: parse bloom_doy: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
