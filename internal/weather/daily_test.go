package weather

import (
	"math"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func TestGrowingDegreeDay(t *testing.T) {
	tests := []struct {
		name    string
		tempMax float64
		tempMin float64
		want    float64
	}{
		{"warm day", 25, 15, 10},
		{"exactly at base", 12, 8, 0},
		{"cold day clamped to zero", 5, 3, 0},
		{"fractional accumulation", 22, 11, 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GrowingDegreeDay(tt.tempMax, tt.tempMin)
			if got != tt.want {
				t.Errorf("GrowingDegreeDay(%v, %v) = %v, want %v", tt.tempMax, tt.tempMin, got, tt.want)
			}
		})
	}

	t.Run("missing temperature propagates", func(t *testing.T) {
		if got := GrowingDegreeDay(math.NaN(), 10); !math.IsNaN(got) {
			t.Errorf("GrowingDegreeDay(NaN, 10) = %v, want NaN", got)
		}
		if got := GrowingDegreeDay(20, math.NaN()); !math.IsNaN(got) {
			t.Errorf("GrowingDegreeDay(20, NaN) = %v, want NaN", got)
		}
	})
}

func TestSunshineHours(t *testing.T) {
	if got := SunshineHours(7200); got != 2.0 {
		t.Errorf("SunshineHours(7200) = %v, want 2.0", got)
	}
	if got := SunshineHours(0); got != 0 {
		t.Errorf("SunshineHours(0) = %v, want 0", got)
	}
	if got := SunshineHours(math.NaN()); !math.IsNaN(got) {
		t.Errorf("SunshineHours(NaN) = %v, want NaN", got)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildDailyHistoryWinsOverForecast(t *testing.T) {
	history := []RawDay{
		{Date: day(2024, 3, 1), TempMax: f(10), TempMin: f(2), SunshineSeconds: f(3600), Precipitation: f(1)},
		{Date: day(2024, 3, 2), TempMax: f(12), TempMin: f(4), SunshineSeconds: f(7200), Precipitation: f(0)},
	}
	forecast := []RawDay{
		{Date: day(2024, 3, 2), TempMax: f(99), TempMin: f(99), SunshineSeconds: f(0), Precipitation: f(9)},
		{Date: day(2024, 3, 3), TempMax: f(14), TempMin: f(6), SunshineSeconds: f(10800), Precipitation: f(2)},
	}

	records := BuildDaily("kyoto", history, forecast)
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	// Overlapping date keeps the observed values.
	if records[1].Date != day(2024, 3, 2) {
		t.Fatalf("records[1].Date = %v, want 2024-03-02", records[1].Date)
	}
	if records[1].TempMax != 12 {
		t.Errorf("overlap TempMax = %v, want historical 12", records[1].TempMax)
	}
	if records[1].SunshineHours != 2.0 {
		t.Errorf("overlap SunshineHours = %v, want 2.0", records[1].SunshineHours)
	}

	// Forecast fills beyond the historical cutoff.
	if records[2].Date != day(2024, 3, 3) {
		t.Fatalf("records[2].Date = %v, want 2024-03-03", records[2].Date)
	}
	if records[2].TempMax != 14 {
		t.Errorf("forecast tail TempMax = %v, want 14", records[2].TempMax)
	}
	if records[2].SunshineHours != 3.0 {
		t.Errorf("forecast tail SunshineHours = %v, want 3.0", records[2].SunshineHours)
	}
}

func TestBuildDailyMissingFields(t *testing.T) {
	records := BuildDaily("kyoto", []RawDay{
		{Date: day(2024, 1, 1), TempMax: f(8), TempMin: nil, SunshineSeconds: nil, Precipitation: f(3)},
	}, nil)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if !math.IsNaN(rec.TempMin) {
		t.Errorf("TempMin = %v, want NaN", rec.TempMin)
	}
	if !math.IsNaN(rec.SunshineHours) {
		t.Errorf("SunshineHours = %v, want NaN", rec.SunshineHours)
	}
	if !math.IsNaN(rec.GDD) {
		t.Errorf("GDD = %v, want NaN when a temperature is missing", rec.GDD)
	}
	if rec.Precipitation != 3 {
		t.Errorf("Precipitation = %v, want 3", rec.Precipitation)
	}
	if rec.Year != 2024 {
		t.Errorf("Year = %d, want 2024", rec.Year)
	}
}

func TestBuildDailySortedByDate(t *testing.T) {
	records := BuildDaily("kyoto", []RawDay{
		{Date: day(2024, 2, 3), TempMax: f(1), TempMin: f(0)},
		{Date: day(2024, 2, 1), TempMax: f(1), TempMin: f(0)},
		{Date: day(2024, 2, 2), TempMax: f(1), TempMin: f(0)},
	}, nil)
	for i := 1; i < len(records); i++ {
		if !records[i-1].Date.Before(records[i].Date) {
			t.Fatalf("records not sorted: %v before %v", records[i-1].Date, records[i].Date)
		}
	}
}
