package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/features"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/ingest"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/metrics"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/model"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/models"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/phenology"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/store"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/weather"
)

var defaultLocations = []models.Location{
	{Key: "kyoto", Name: "Kyoto", Latitude: 35.0120, Longitude: 135.6761, Altitude: 44},
	{Key: "liestal", Name: "Liestal-Weideli", Latitude: 47.4814, Longitude: 7.7306, Altitude: 350},
	{Key: "washingtondc", Name: "Washington, D.C.", Latitude: 38.8853, Longitude: -77.0386, Altitude: 0},
	{Key: "vancouver", Name: "Vancouver, BC", Latitude: 49.2237, Longitude: -123.1636, Altitude: 24},
	{Key: "newyorkcity", Name: "New York City", Latitude: 40.7304, Longitude: -73.9967, Altitude: 8.5},
}

// Published bloom archives expected under the data directory. New York
// City has no published archive; its records come from the phenology
// export instead.
var archiveFiles = []string{"kyoto.csv", "liestal.csv", "washingtondc.csv", "vancouver.csv"}

const nycLocationKey = "newyorkcity"

func main() {
	dbPath := flag.String("db", "data/cherrybloom.db", "path to SQLite weather cache")
	dataDir := flag.String("data", "data", "directory with bloom archives and phenology exports")
	targetYear := flag.Int("year", 0, "prediction year (default: next bloom season)")
	doFetch := flag.Bool("fetch", false, "fetch and cache weather history, then exit")
	doLoad := flag.Bool("load", false, "load bloom archives and phenology CSVs into the cache, then exit")
	doFeatures := flag.String("features", "", "write the assembled feature table to this CSV and exit")
	doCV := flag.Bool("cv", false, "report cross-validated model accuracy and exit")
	out := flag.String("out", "predictions.csv", "predictions output file")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address during fetch")
	ghcnPairs := flag.String("ghcn", "", "GHCN backfill as location=STATIONID pairs, comma separated")
	flag.Parse()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	for _, loc := range defaultLocations {
		if err := st.UpsertLocation(loc); err != nil {
			log.Fatalf("upsert location %s: %v", loc.Key, err)
		}
	}

	year := *targetYear
	if year == 0 {
		year = upcomingBloomYear(time.Now().UTC())
	}

	if *doFetch {
		if *metricsAddr != "" {
			go serveMetrics(*metricsAddr)
		}
		if err := fetchAll(st, year, *ghcnPairs); err != nil {
			log.Fatalf("fetch: %v", err)
		}
		log.Println("fetch: done")
		return
	}

	if *doLoad {
		if err := loadBloomData(st, *dataDir); err != nil {
			log.Fatalf("load: %v", err)
		}
		log.Println("load: done")
		return
	}

	rows, tables, err := assemble(st)
	if err != nil {
		log.Fatalf("assemble: %v", err)
	}
	log.Printf("assemble: %d feature rows", len(rows))

	if *doFeatures != "" {
		if err := writeFeatureCSV(*doFeatures, rows); err != nil {
			log.Fatalf("features: %v", err)
		}
		log.Printf("features: wrote %s", *doFeatures)
		return
	}

	if *doCV {
		_, results, err := model.Select(rows)
		if err != nil {
			log.Fatalf("cv: %v", err)
		}
		for _, r := range results {
			log.Printf("cv: %-14s MAE=%.2f RMSE=%.2f n=%d", r.Name, r.MAE, r.RMSE, r.SampleSize)
		}
		return
	}

	m, results, err := model.Select(rows)
	if err != nil {
		log.Fatalf("train: %v", err)
	}
	for _, r := range results {
		log.Printf("train: candidate %-14s MAE=%.2f RMSE=%.2f n=%d", r.Name, r.MAE, r.RMSE, r.SampleSize)
	}
	log.Printf("train: selected %s", m.Name)

	predRows := predictionRows(st, tables, year)
	preds, skipped := model.Predictions(m, predRows)
	for _, loc := range skipped {
		log.Printf("predict: %s skipped, missing feature coverage for %d", loc, year)
	}
	for _, p := range preds {
		log.Printf("predict: %s %d -> day %d", p.Location, year, p.BloomDOY)
	}

	if err := model.WritePredictions(*out, preds); err != nil {
		log.Fatalf("predict: %v", err)
	}
	log.Printf("predict: wrote %s", *out)
}

// upcomingBloomYear picks the season being predicted: from July on the
// coming spring belongs to the next calendar year.
func upcomingBloomYear(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year() + 1
	}
	return now.Year()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("metrics: serving on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics: server stopped: %v", err)
	}
}

// fetchAll brings the weather cache up to date for every location:
// daily history since 1940 (resuming from the cached cutoff), the
// ~16-day forecast tail, hourly temperatures, and any requested GHCN
// station backfill.
func fetchAll(st *store.Store, year int, ghcnPairs string) error {
	om := ingest.NewOpenMeteo()
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	historyStart := time.Date(features.EarliestWeatherYear, time.January, 1, 0, 0, 0, 0, time.UTC)

	locations, err := st.GetLocations()
	if err != nil {
		return fmt.Errorf("get locations: %w", err)
	}

	ghcnStations, err := parseGHCNPairs(ghcnPairs)
	if err != nil {
		return err
	}

	for _, loc := range locations {
		start := historyStart
		if latest, ok, err := st.LatestHistoryDate(loc.Key); err != nil {
			return fmt.Errorf("latest history date %s: %w", loc.Key, err)
		} else if ok {
			start = latest.AddDate(0, 0, 1)
		}

		if !start.After(yesterday) {
			log.Printf("fetch: %s daily history %s..%s", loc.Key,
				start.Format("2006-01-02"), yesterday.Format("2006-01-02"))
			history, err := om.FetchDailyHistory(loc, start, yesterday)
			if err != nil {
				return fmt.Errorf("daily history %s: %w", loc.Key, err)
			}
			if err := storeDaily(st, loc.Key, history, store.SourceHistory); err != nil {
				return err
			}
		}

		forecast, err := om.FetchDailyForecast(loc)
		if err != nil {
			return fmt.Errorf("daily forecast %s: %w", loc.Key, err)
		}
		if err := storeDaily(st, loc.Key, forecast, store.SourceForecast); err != nil {
			return err
		}

		hourlyStart := historyStart
		if latest, ok, err := st.LatestHourlyTime(loc.Key); err != nil {
			return fmt.Errorf("latest hourly time %s: %w", loc.Key, err)
		} else if ok {
			hourlyStart = latest.Add(time.Hour)
		}
		if !hourlyStart.After(yesterday) {
			log.Printf("fetch: %s hourly history from %s", loc.Key, hourlyStart.Format("2006-01-02"))
			hours, err := om.FetchHourlyHistory(loc, hourlyStart, yesterday)
			if err != nil {
				return fmt.Errorf("hourly history %s: %w", loc.Key, err)
			}
			for _, h := range hours {
				if err := st.InsertHourlyTemp(h); err != nil {
					return fmt.Errorf("insert hourly %s: %w", loc.Key, err)
				}
			}
			metrics.HourlyRecordsIngested.WithLabelValues(loc.Key).Add(float64(len(hours)))
			log.Printf("fetch: %s cached %d hourly temps", loc.Key, len(hours))
		}

		if stationID, ok := ghcnStations[loc.Key]; ok {
			log.Printf("fetch: %s ghcn backfill from station %s", loc.Key, stationID)
			ghcn := ingest.NewGHCNClient()
			days, err := ghcn.FetchDaily(stationID)
			if err != nil {
				return fmt.Errorf("ghcn %s: %w", stationID, err)
			}
			if err := storeBackfill(st, loc.Key, days); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeDaily(st *store.Store, location string, days []weather.RawDay, source string) error {
	records := weather.BuildDaily(location, days, nil)
	for _, rec := range records {
		if err := st.UpsertDailyWeather(rec, source); err != nil {
			return fmt.Errorf("upsert daily %s %s: %w", location, rec.Date.Format("2006-01-02"), err)
		}
	}
	metrics.DailyRecordsIngested.WithLabelValues(location).Add(float64(len(records)))
	log.Printf("fetch: %s cached %d daily records", location, len(records))
	return nil
}

// storeBackfill writes GHCN days without disturbing dates already
// covered by the archive API. GHCN carries no sunshine element, so
// letting it win would null sunshine for every overlapping decade.
func storeBackfill(st *store.Store, location string, days []weather.RawDay) error {
	records := weather.BuildDaily(location, days, nil)
	for _, rec := range records {
		if err := st.InsertDailyWeatherBackfill(rec); err != nil {
			return fmt.Errorf("backfill daily %s %s: %w", location, rec.Date.Format("2006-01-02"), err)
		}
	}
	metrics.DailyRecordsIngested.WithLabelValues(location).Add(float64(len(records)))
	log.Printf("fetch: %s backfilled %d daily records", location, len(records))
	return nil
}

func parseGHCNPairs(pairs string) (map[string]string, error) {
	stations := make(map[string]string)
	if pairs == "" {
		return stations, nil
	}
	for _, pair := range strings.Split(pairs, ",") {
		key, station, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed -ghcn pair %q, want location=STATIONID", pair)
		}
		stations[key] = station
	}
	return stations, nil
}

// loadBloomData imports the published bloom archives plus the NYC
// phenology export into the cache.
func loadBloomData(st *store.Store, dataDir string) error {
	for _, name := range archiveFiles {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Printf("load: %s not present, skipping", name)
			continue
		}
		records, err := phenology.LoadBloomRecords(path)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := st.UpsertBloomRecord(rec); err != nil {
				return fmt.Errorf("upsert bloom record %s/%d: %w", rec.Location, rec.Year, err)
			}
		}
		log.Printf("load: %s: %d bloom records", name, len(records))
	}

	phenoPath := filepath.Join(dataDir, "nyc_phenometrics.csv")
	if _, err := os.Stat(phenoPath); os.IsNotExist(err) {
		log.Printf("load: %s not present, skipping", phenoPath)
		return nil
	}
	observations, err := phenology.LoadObservations(phenoPath)
	if err != nil {
		return err
	}
	var nyc models.Location
	for _, loc := range defaultLocations {
		if loc.Key == nycLocationKey {
			nyc = loc
		}
	}
	records := phenology.EstimateBloomRecords(nyc, observations)
	for _, rec := range records {
		if err := st.UpsertBloomRecord(rec); err != nil {
			return fmt.Errorf("upsert estimated bloom record %s/%d: %w", rec.Location, rec.Year, err)
		}
	}
	log.Printf("load: estimated %d bloom records from %d NYC observations", len(records), len(observations))
	return nil
}

// assemble builds the shared weather tables and the labeled feature
// rows from the cache.
func assemble(st *store.Store) ([]models.FeatureRow, *features.Tables, error) {
	locations, err := st.GetLocations()
	if err != nil {
		return nil, nil, fmt.Errorf("get locations: %w", err)
	}

	var daily []models.DailyWeatherRecord
	var chill []models.ChillAggregate
	for _, loc := range locations {
		d, err := st.GetDailyWeather(loc.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("get daily weather %s: %w", loc.Key, err)
		}
		daily = append(daily, d...)

		hours, err := st.GetHourlyTemps(loc.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("get hourly temps %s: %w", loc.Key, err)
		}
		chill = append(chill, weather.AggregateChill(loc.Key, hours)...)
	}

	blooms, err := st.GetBloomRecords()
	if err != nil {
		return nil, nil, fmt.Errorf("get bloom records: %w", err)
	}

	tables := features.NewTables(daily, chill)
	return features.Assemble(blooms, tables), tables, nil
}

// predictionRows builds one unlabeled feature row per location for the
// target year, aggregating up to the last cached weather date.
func predictionRows(st *store.Store, tables *features.Tables, year int) []models.FeatureRow {
	var rows []models.FeatureRow
	locations, err := st.GetLocations()
	if err != nil {
		log.Printf("predict: get locations: %v", err)
		return nil
	}
	for _, loc := range locations {
		cutoff, ok := tables.LastDate(loc.Key)
		if !ok {
			log.Printf("predict: %s has no cached weather", loc.Key)
			continue
		}
		rows = append(rows, tables.FeatureRow(models.BloomRecord{
			Location:  loc.Key,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Altitude:  loc.Altitude,
			Year:      year,
			BloomDate: cutoff,
		}))
	}
	return rows
}

func writeFeatureCSV(path string, rows []models.FeatureRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feature file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"location", "year", "bloom_date", "bloom_doy", "chill_hours", "accumulative_gdd", "total_sunshine", "total_precipitation"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write feature header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Location,
			strconv.Itoa(row.Year),
			row.BloomDate.Format("2006-01-02"),
			strconv.Itoa(row.BloomDOY),
			nullInt(row.ChillHours),
			nullFloat(row.GDDSum),
			nullFloat(row.SunshineSum),
			nullFloat(row.PrecipSum),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write feature row %s/%d: %w", row.Location, row.Year, err)
		}
	}
	w.Flush()
	return w.Error()
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', 2, 64)
}
