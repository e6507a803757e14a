package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cherrybloom_weather_api_calls_total",
			Help: "Total upstream weather provider calls",
		},
		[]string{"location", "endpoint", "status"},
	)

	WeatherAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cherrybloom_weather_api_latency_seconds",
			Help:    "Upstream weather provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"location", "endpoint"},
	)

	DailyRecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cherrybloom_daily_records_ingested_total",
			Help: "Total daily weather records written to the cache",
		},
		[]string{"location"},
	)

	HourlyRecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cherrybloom_hourly_records_ingested_total",
			Help: "Total hourly temperature records written to the cache",
		},
		[]string{"location"},
	)
)
