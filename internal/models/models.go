package models

import (
	"database/sql"
	"time"
)

// Location is one of the competition sites a prediction is produced for.
type Location struct {
	Key       string
	Name      string
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// PhenologyObservation is a single volunteer first-open-flower report
// for one tree, as exported by the USA-NPN individual phenometrics feed.
// DaysSincePrior is the gap to the last "no open flowers" report for the
// same tree; the feed uses -9999 when that gap is unknown.
type PhenologyObservation struct {
	SiteID         int
	SpeciesID      int
	Year           int
	Month          int
	Day            int
	DayOfYear      int
	DaysSincePrior int
}

// BloomRecord is one resolved peak-bloom event for a location-year,
// either estimated from phenology observations or taken from a
// published historical archive. BloomDOY is always the floor of
// BloomDate's day-of-year.
type BloomRecord struct {
	Location  string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Year      int
	BloomDate time.Time
	BloomDOY  int
}

// DailyWeatherRecord is one site-day of derived weather. Missing or
// malformed numeric fields are NaN so that downstream sums can skip
// them. GDD is max(0, (TempMax+TempMin)/2 - 10) and NaN when either
// temperature is missing.
type DailyWeatherRecord struct {
	Location      string
	Date          time.Time
	TempMax       float64
	TempMin       float64
	SunshineHours float64
	Precipitation float64
	Year          int
	GDD           float64
}

// HourlyTemperatureRecord is one site-hour of observed temperature.
type HourlyTemperatureRecord struct {
	Location   string
	ObservedAt time.Time
	Temp       float64
}

// ChillAggregate is the winter chill-hour total for one
// (location, chill year). The chill year Y covers November and
// December of Y-1 plus January and February of Y.
type ChillAggregate struct {
	Location   string
	ChillYear  int
	ChillHours int
}

// FeatureRow is one (location, year) example of the model's feature
// matrix: the bloom record fields plus the seasonal aggregates. The
// aggregate fields carry explicit null markers when the underlying
// window had no coverage; they are never silently zero.
type FeatureRow struct {
	Location    string
	Latitude    float64
	Longitude   float64
	Altitude    float64
	Year        int
	BloomDate   time.Time
	BloomDOY    int
	ChillHours  sql.NullInt64
	GDDSum      sql.NullFloat64
	SunshineSum sql.NullFloat64
	PrecipSum   sql.NullFloat64
}

// Prediction is one rounded bloom day-of-year for a location.
type Prediction struct {
	Location string
	BloomDOY int
}
