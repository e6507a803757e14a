package features

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
)

func dailyRecord(loc string, date time.Time, gdd, sunshine, precip float64) models.DailyWeatherRecord {
	return models.DailyWeatherRecord{
		Location:      loc,
		Date:          date,
		SunshineHours: sunshine,
		Precipitation: precip,
		Year:          date.Year(),
		GDD:           gdd,
	}
}

func springDays(loc string, year, n int, gdd, sunshine, precip float64) []models.DailyWeatherRecord {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := make([]models.DailyWeatherRecord, n)
	for i := range days {
		days[i] = dailyRecord(loc, start.AddDate(0, 0, i), gdd, sunshine, precip)
	}
	return days
}

func TestFeatureRowWindowedSums(t *testing.T) {
	// 100 days from Jan 1, each contributing one growing degree day.
	daily := springDays("washingtondc", 2020, 120, 1.0, 2.0, 0.5)
	tables := NewTables(daily, []models.ChillAggregate{
		{Location: "washingtondc", ChillYear: 2020, ChillHours: 840},
	})

	bloom := models.BloomRecord{
		Location:  "washingtondc",
		Year:      2020,
		BloomDate: time.Date(2020, time.April, 9, 0, 0, 0, 0, time.UTC), // 100th day (leap year)
		BloomDOY:  100,
	}
	row := tables.FeatureRow(bloom)

	if !row.GDDSum.Valid || row.GDDSum.Float64 != 100.0 {
		t.Errorf("GDDSum = %+v, want exactly 100.0", row.GDDSum)
	}
	if !row.SunshineSum.Valid || row.SunshineSum.Float64 != 200.0 {
		t.Errorf("SunshineSum = %+v, want 200.0", row.SunshineSum)
	}
	if !row.PrecipSum.Valid || row.PrecipSum.Float64 != 50.0 {
		t.Errorf("PrecipSum = %+v, want 50.0", row.PrecipSum)
	}
	if !row.ChillHours.Valid || row.ChillHours.Int64 != 840 {
		t.Errorf("ChillHours = %+v, want 840", row.ChillHours)
	}
}

func TestFeatureRowEmptyWindowIsMissingNotZero(t *testing.T) {
	// Weather coverage exists only for a different year.
	daily := springDays("vancouver", 2019, 90, 1.0, 1.0, 1.0)
	tables := NewTables(daily, nil)

	row := tables.FeatureRow(models.BloomRecord{
		Location:  "vancouver",
		Year:      2022,
		BloomDate: time.Date(2022, time.April, 1, 0, 0, 0, 0, time.UTC),
	})

	if row.GDDSum.Valid {
		t.Errorf("GDDSum = %+v, want missing for empty window", row.GDDSum)
	}
	if row.SunshineSum.Valid {
		t.Errorf("SunshineSum = %+v, want missing", row.SunshineSum)
	}
	if row.PrecipSum.Valid {
		t.Errorf("PrecipSum = %+v, want missing", row.PrecipSum)
	}
	if row.ChillHours.Valid {
		t.Errorf("ChillHours = %+v, want missing without an aggregate", row.ChillHours)
	}
}

func TestFeatureRowElementsIndependent(t *testing.T) {
	// Sunshine is missing on every day; GDD and precipitation are not.
	daily := springDays("kyoto", 2021, 60, 2.0, math.NaN(), 1.0)
	tables := NewTables(daily, nil)

	row := tables.FeatureRow(models.BloomRecord{
		Location:  "kyoto",
		Year:      2021,
		BloomDate: time.Date(2021, time.February, 10, 0, 0, 0, 0, time.UTC),
	})

	if row.SunshineSum.Valid {
		t.Errorf("SunshineSum = %+v, want missing when no day has a value", row.SunshineSum)
	}
	if !row.GDDSum.Valid || row.GDDSum.Float64 != 82.0 { // 41 days * 2.0
		t.Errorf("GDDSum = %+v, want 82.0 despite the sunshine gap", row.GDDSum)
	}
	if !row.PrecipSum.Valid || row.PrecipSum.Float64 != 41.0 {
		t.Errorf("PrecipSum = %+v, want 41.0", row.PrecipSum)
	}
}

func TestFeatureRowSumSkipsGaps(t *testing.T) {
	daily := springDays("kyoto", 2021, 10, 1.0, 1.0, 1.0)
	daily[3].GDD = math.NaN()
	daily[7].GDD = math.NaN()
	tables := NewTables(daily, nil)

	row := tables.FeatureRow(models.BloomRecord{
		Location:  "kyoto",
		Year:      2021,
		BloomDate: time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC),
	})
	if !row.GDDSum.Valid || row.GDDSum.Float64 != 8.0 {
		t.Errorf("GDDSum = %+v, want 8.0 with two gap days skipped", row.GDDSum)
	}
}

func TestWindowInclusiveBounds(t *testing.T) {
	daily := []models.DailyWeatherRecord{
		dailyRecord("kyoto", time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC), 1, 0, 0),
		dailyRecord("kyoto", time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), 1, 0, 0),
		dailyRecord("kyoto", time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC), 1, 0, 0),
		dailyRecord("kyoto", time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), 1, 0, 0),
	}
	tables := NewTables(daily, nil)

	row := tables.FeatureRow(models.BloomRecord{
		Location:  "kyoto",
		Year:      2021,
		BloomDate: time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC),
	})
	// Jan 1 and Jan 2 only: the prior December day and Jan 3 are outside.
	if !row.GDDSum.Valid || row.GDDSum.Float64 != 2.0 {
		t.Errorf("GDDSum = %+v, want 2.0", row.GDDSum)
	}
}

func TestAssembleFiltersPreWeatherYears(t *testing.T) {
	daily := springDays("kyoto", 1939, 90, 1, 1, 1)
	tables := NewTables(daily, nil)
	records := []models.BloomRecord{
		{Location: "kyoto", Year: 1939, BloomDate: time.Date(1939, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{Location: "kyoto", Year: 1940, BloomDate: time.Date(1940, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}

	rows := Assemble(records, tables)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Year != 1940 {
		t.Errorf("rows[0].Year = %d, want 1940", rows[0].Year)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	daily := springDays("liestal", 2018, 110, 0.8, 3.0, 1.2)
	chill := []models.ChillAggregate{{Location: "liestal", ChillYear: 2018, ChillHours: 600}}
	records := []models.BloomRecord{
		{Location: "liestal", Year: 2018, BloomDate: time.Date(2018, time.April, 5, 0, 0, 0, 0, time.UTC), BloomDOY: 95},
	}

	tables := NewTables(daily, chill)
	first := Assemble(records, tables)
	second := Assemble(records, tables)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Assemble is not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestLastDate(t *testing.T) {
	daily := springDays("kyoto", 2024, 5, 1, 1, 1)
	tables := NewTables(daily, nil)

	last, ok := tables.LastDate("kyoto")
	if !ok {
		t.Fatal("LastDate(kyoto) ok = false, want true")
	}
	want := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	if !last.Equal(want) {
		t.Errorf("LastDate = %v, want %v", last, want)
	}

	if _, ok := tables.LastDate("nowhere"); ok {
		t.Error("LastDate(nowhere) ok = true, want false")
	}
}
