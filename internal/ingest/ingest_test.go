package ingest

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseDaily(t *testing.T) {
	body := []byte(`{
		"daily": {
			"time": ["2024-03-01", "2024-03-02", "2024-03-03"],
			"temperature_2m_max": [10.5, null, 14.0],
			"temperature_2m_min": [2.1, 3.0, null],
			"sunshine_duration": [7200.0, 0.0, null],
			"precipitation_sum": [0.0, 5.5, 1.2]
		}
	}`)

	days, err := parseDaily(body)
	if err != nil {
		t.Fatalf("parseDaily: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("len(days) = %d, want 3", len(days))
	}

	first := days[0]
	if !first.Date.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want 2024-03-01", first.Date)
	}
	if first.TempMax == nil || *first.TempMax != 10.5 {
		t.Errorf("TempMax = %v, want 10.5", first.TempMax)
	}
	if first.SunshineSeconds == nil || *first.SunshineSeconds != 7200.0 {
		t.Errorf("SunshineSeconds = %v, want 7200", first.SunshineSeconds)
	}

	if days[1].TempMax != nil {
		t.Errorf("null temperature_2m_max should stay nil, got %v", *days[1].TempMax)
	}
	if days[2].TempMin != nil || days[2].SunshineSeconds != nil {
		t.Error("null fields on day 3 should stay nil")
	}
}

func TestParseDailyMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad date", `{"daily": {"time": ["yesterday"], "temperature_2m_max": [1.0]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseDaily([]byte(tt.body)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseDailyShortArrays(t *testing.T) {
	// A variable array shorter than the time axis must not panic.
	body := []byte(`{
		"daily": {
			"time": ["2024-03-01", "2024-03-02"],
			"temperature_2m_max": [10.0]
		}
	}`)
	days, err := parseDaily(body)
	if err != nil {
		t.Fatalf("parseDaily: %v", err)
	}
	if days[1].TempMax != nil {
		t.Error("missing slot should be nil")
	}
}

// Fixed-width GHCN lines: ID(11) YEAR(4) MONTH(2) ELEMENT(4) then 31
// value+flag groups of 8 characters.
func ghcnLine(station string, year, month int, element string, values map[int]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s%04d%02d%s", station, year, month, element)
	for day := 1; day <= 31; day++ {
		v, ok := values[day]
		if !ok {
			v = -9999
		}
		fmt.Fprintf(&b, "%5d   ", v) // value plus blank M/Q/S flags
	}
	return b.String()
}

func TestParseDLY(t *testing.T) {
	input := strings.Join([]string{
		ghcnLine("USW00013743", 1950, 3, "TMAX", map[int]int{1: 155, 2: -9999, 3: 201}),
		ghcnLine("USW00013743", 1950, 3, "TMIN", map[int]int{1: 42, 3: 98}),
		ghcnLine("USW00013743", 1950, 3, "PRCP", map[int]int{1: 0, 3: 127}),
		ghcnLine("USW00013743", 1950, 3, "SNOW", map[int]int{1: 50}),
	}, "\n")

	days, err := ParseDLY(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDLY: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2 (day 2 has no values)", len(days))
	}

	first := days[0]
	if !first.Date.Equal(time.Date(1950, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want 1950-03-01", first.Date)
	}
	if first.TempMax == nil || *first.TempMax != 15.5 {
		t.Errorf("TempMax = %v, want 15.5 (tenths of C)", first.TempMax)
	}
	if first.TempMin == nil || *first.TempMin != 4.2 {
		t.Errorf("TempMin = %v, want 4.2", first.TempMin)
	}
	if first.Precipitation == nil || *first.Precipitation != 0 {
		t.Errorf("Precipitation = %v, want 0", first.Precipitation)
	}
	if first.SunshineSeconds != nil {
		t.Error("GHCN has no sunshine; field should stay nil")
	}

	third := days[1]
	if third.TempMax == nil || *third.TempMax != 20.1 {
		t.Errorf("day 3 TempMax = %v, want 20.1", third.TempMax)
	}
	if third.Precipitation == nil || *third.Precipitation != 12.7 {
		t.Errorf("day 3 Precipitation = %v, want 12.7", third.Precipitation)
	}
}

func TestParseDLYShortLine(t *testing.T) {
	if _, err := ParseDLY(strings.NewReader("tooshort")); err == nil {
		t.Error("expected error for truncated record")
	}
}

func TestParseDLYRespectsMonthLength(t *testing.T) {
	// A value in the day-31 slot of a 30-day month is ignored.
	input := ghcnLine("USW00013743", 1950, 4, "TMAX", map[int]int{30: 100, 31: 999})
	days, err := ParseDLY(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDLY: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(days))
	}
	if got := days[0].Date.Day(); got != 30 {
		t.Errorf("Date.Day = %d, want 30", got)
	}
}
