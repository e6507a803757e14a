// Package ingest fetches raw weather history from upstream providers.
// It knows nothing about feature derivation; it only materializes the
// tables the aggregation pipeline consumes.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/metrics"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/weather"
)

const (
	archiveBaseURL  = "https://archive-api.open-meteo.com/v1/archive"
	forecastBaseURL = "https://api.open-meteo.com/v1/forecast"

	dailyVariables = "temperature_2m_max,temperature_2m_min,sunshine_duration,precipitation_sum"

	// The forecast endpoint covers roughly the next 16 days.
	forecastDays = 16
)

type OpenMeteo struct {
	client *http.Client
}

func NewOpenMeteo() *OpenMeteo {
	return &OpenMeteo{client: &http.Client{Timeout: 30 * time.Second}}
}

type dailyResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		TempMax          []*float64 `json:"temperature_2m_max"`
		TempMin          []*float64 `json:"temperature_2m_min"`
		SunshineDuration []*float64 `json:"sunshine_duration"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type hourlyResponse struct {
	Hourly struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// FetchDailyHistory returns one RawDay per date in [start, end] from
// the archive API. Null readings survive as nil pointers.
func (o *OpenMeteo) FetchDailyHistory(loc models.Location, start, end time.Time) ([]weather.RawDay, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&start_date=%s&end_date=%s&daily=%s&timezone=UTC",
		archiveBaseURL, loc.Latitude, loc.Longitude,
		start.Format("2006-01-02"), end.Format("2006-01-02"), dailyVariables)

	body, err := o.get(url, loc.Key, "archive_daily")
	if err != nil {
		return nil, err
	}
	return parseDaily(body)
}

// FetchDailyForecast returns the ~16-day forecast tail as RawDays.
func (o *OpenMeteo) FetchDailyForecast(loc models.Location) ([]weather.RawDay, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&daily=%s&forecast_days=%d&timezone=UTC",
		forecastBaseURL, loc.Latitude, loc.Longitude, dailyVariables, forecastDays)

	body, err := o.get(url, loc.Key, "forecast_daily")
	if err != nil {
		return nil, err
	}
	return parseDaily(body)
}

// FetchHourlyHistory returns hourly temperatures in [start, end].
// Hours with a null reading are dropped.
func (o *OpenMeteo) FetchHourlyHistory(loc models.Location, start, end time.Time) ([]models.HourlyTemperatureRecord, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&start_date=%s&end_date=%s&hourly=temperature_2m&timezone=UTC",
		archiveBaseURL, loc.Latitude, loc.Longitude,
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	body, err := o.get(url, loc.Key, "archive_hourly")
	if err != nil {
		return nil, err
	}

	var data hourlyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal hourly: %w", err)
	}

	var records []models.HourlyTemperatureRecord
	for i, ts := range data.Hourly.Time {
		if i >= len(data.Hourly.Temperature) || data.Hourly.Temperature[i] == nil {
			continue
		}
		observedAt, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			return nil, fmt.Errorf("parse hourly time %q: %w", ts, err)
		}
		records = append(records, models.HourlyTemperatureRecord{
			Location:   loc.Key,
			ObservedAt: observedAt.UTC(),
			Temp:       *data.Hourly.Temperature[i],
		})
	}
	return records, nil
}

func (o *OpenMeteo) get(url, location, endpoint string) ([]byte, error) {
	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := o.client.Get(url)
		if err != nil {
			metrics.WeatherAPICallsTotal.WithLabelValues(location, endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
		}
		defer resp.Body.Close()
		metrics.WeatherAPILatency.WithLabelValues(location, endpoint).Observe(time.Since(start).Seconds())

		if resp.StatusCode == http.StatusTooManyRequests {
			metrics.WeatherAPICallsTotal.WithLabelValues(location, endpoint, "rate_limited").Inc()
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			metrics.WeatherAPICallsTotal.WithLabelValues(location, endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.WeatherAPICallsTotal.WithLabelValues(location, endpoint, "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return body, nil
}

func parseDaily(body []byte) ([]weather.RawDay, error) {
	var data dailyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal daily: %w", err)
	}

	at := func(values []*float64, i int) *float64 {
		if i < len(values) {
			return values[i]
		}
		return nil
	}

	days := make([]weather.RawDay, 0, len(data.Daily.Time))
	for i, ts := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			return nil, fmt.Errorf("parse daily time %q: %w", ts, err)
		}
		days = append(days, weather.RawDay{
			Date:            date,
			TempMax:         at(data.Daily.TempMax, i),
			TempMin:         at(data.Daily.TempMin, i),
			SunshineSeconds: at(data.Daily.SunshineDuration, i),
			Precipitation:   at(data.Daily.PrecipitationSum, i),
		})
	}
	return days, nil
}
