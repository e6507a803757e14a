// Package store caches fetched weather history and bloom archives in
// SQLite so repeated runs only hit the upstream providers for dates
// not yet covered.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

// Daily weather provenance values. History wins over forecast for a
// date present in both.
const (
	SourceHistory  = "history"
	SourceForecast = "forecast"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertLocation(loc models.Location) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (location, name, latitude, longitude, altitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude
	`, loc.Key, loc.Name, loc.Latitude, loc.Longitude, loc.Altitude)
	return err
}

func (s *Store) GetLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT location, name, latitude, longitude, altitude FROM locations ORDER BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.Key, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.Altitude); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// UpsertDailyWeather writes one derived site-day. A forecast row never
// overwrites a history row for the same date; a history row always
// wins.
func (s *Store) UpsertDailyWeather(rec models.DailyWeatherRecord, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_weather (location, date, temp_max, temp_min, sunshine_hours, precipitation, gdd, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, date) DO UPDATE SET
			temp_max = excluded.temp_max,
			temp_min = excluded.temp_min,
			sunshine_hours = excluded.sunshine_hours,
			precipitation = excluded.precipitation,
			gdd = excluded.gdd,
			source = excluded.source
		WHERE excluded.source = 'history' OR daily_weather.source = 'forecast'
	`, rec.Location, rec.Date.Format("2006-01-02"),
		nullIfNaN(rec.TempMax), nullIfNaN(rec.TempMin),
		nullIfNaN(rec.SunshineHours), nullIfNaN(rec.Precipitation),
		nullIfNaN(rec.GDD), source)
	return err
}

// InsertDailyWeatherBackfill writes one site-day only when no row is
// cached yet for that date. Backfill sources cover a station's full
// period of record and usually carry fewer elements, so they must
// never replace a date another source already covered.
func (s *Store) InsertDailyWeatherBackfill(rec models.DailyWeatherRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_weather (location, date, temp_max, temp_min, sunshine_hours, precipitation, gdd, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, date) DO NOTHING
	`, rec.Location, rec.Date.Format("2006-01-02"),
		nullIfNaN(rec.TempMax), nullIfNaN(rec.TempMin),
		nullIfNaN(rec.SunshineHours), nullIfNaN(rec.Precipitation),
		nullIfNaN(rec.GDD), SourceHistory)
	return err
}

func (s *Store) GetDailyWeather(location string) ([]models.DailyWeatherRecord, error) {
	rows, err := s.db.Query(`
		SELECT location, date, temp_max, temp_min, sunshine_hours, precipitation, gdd
		FROM daily_weather
		WHERE location = ?
		ORDER BY date ASC
	`, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DailyWeatherRecord
	for rows.Next() {
		var rec models.DailyWeatherRecord
		var dateStr string
		var tempMax, tempMin, sunshine, precip, gdd sql.NullFloat64
		if err := rows.Scan(&rec.Location, &dateStr, &tempMax, &tempMin, &sunshine, &precip, &gdd); err != nil {
			return nil, err
		}
		rec.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse daily date %q: %w", dateStr, err)
		}
		rec.Year = rec.Date.Year()
		rec.TempMax = nanIfNull(tempMax)
		rec.TempMin = nanIfNull(tempMin)
		rec.SunshineHours = nanIfNull(sunshine)
		rec.Precipitation = nanIfNull(precip)
		rec.GDD = nanIfNull(gdd)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestHistoryDate returns the most recent fully observed date cached
// for a location, so fetches can resume from there.
func (s *Store) LatestHistoryDate(location string) (time.Time, bool, error) {
	var dateStr sql.NullString
	err := s.db.QueryRow(`
		SELECT MAX(date) FROM daily_weather WHERE location = ? AND source = 'history'
	`, location).Scan(&dateStr)
	if err != nil {
		return time.Time{}, false, err
	}
	if !dateStr.Valid {
		return time.Time{}, false, nil
	}
	date, err := time.Parse("2006-01-02", dateStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest history date %q: %w", dateStr.String, err)
	}
	return date, true, nil
}

func (s *Store) InsertHourlyTemp(rec models.HourlyTemperatureRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO hourly_temps (location, observed_at, temp)
		VALUES (?, ?, ?)
		ON CONFLICT(location, observed_at) DO NOTHING
	`, rec.Location, rec.ObservedAt.UTC().Format(time.RFC3339), rec.Temp)
	return err
}

func (s *Store) GetHourlyTemps(location string) ([]models.HourlyTemperatureRecord, error) {
	rows, err := s.db.Query(`
		SELECT location, observed_at, temp
		FROM hourly_temps
		WHERE location = ?
		ORDER BY observed_at ASC
	`, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.HourlyTemperatureRecord
	for rows.Next() {
		var rec models.HourlyTemperatureRecord
		var ts string
		if err := rows.Scan(&rec.Location, &ts, &rec.Temp); err != nil {
			return nil, err
		}
		rec.ObservedAt, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", ts, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestHourlyTime returns the newest cached hourly observation for a
// location, or false when none is cached yet.
func (s *Store) LatestHourlyTime(location string) (time.Time, bool, error) {
	var ts sql.NullString
	err := s.db.QueryRow(`
		SELECT MAX(observed_at) FROM hourly_temps WHERE location = ?
	`, location).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	observedAt, err := time.Parse(time.RFC3339, ts.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest hourly time %q: %w", ts.String, err)
	}
	return observedAt, true, nil
}

func (s *Store) UpsertBloomRecord(rec models.BloomRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO bloom_records (location, year, latitude, longitude, altitude, bloom_date, bloom_doy)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, year) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			bloom_date = excluded.bloom_date,
			bloom_doy = excluded.bloom_doy
	`, rec.Location, rec.Year, rec.Latitude, rec.Longitude, rec.Altitude,
		rec.BloomDate.Format("2006-01-02"), rec.BloomDOY)
	return err
}

func (s *Store) GetBloomRecords() ([]models.BloomRecord, error) {
	rows, err := s.db.Query(`
		SELECT location, year, latitude, longitude, altitude, bloom_date, bloom_doy
		FROM bloom_records
		ORDER BY location, year
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.BloomRecord
	for rows.Next() {
		var rec models.BloomRecord
		var dateStr string
		if err := rows.Scan(&rec.Location, &rec.Year, &rec.Latitude, &rec.Longitude, &rec.Altitude, &dateStr, &rec.BloomDOY); err != nil {
			return nil, err
		}
		rec.BloomDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse bloom date %q: %w", dateStr, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullIfNaN(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
