package ingest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/metrics"
	"github.com/cherryblossomcompetition/cherry-blossom-prediction/internal/weather"
)

// GHCN-Daily is the fallback historical source for years the archive
// API lacks. Station files are fixed-width .dly records distributed
// over anonymous FTP.
const (
	ghcnFTPHost = "ftp.ncei.noaa.gov:21"
	ghcnDirPath = "/pub/data/ghcn/daily/all"

	// Missing-value sentinel used throughout GHCN-Daily.
	ghcnMissing = -9999
)

type GHCNClient struct {
	host string
}

func NewGHCNClient() *GHCNClient {
	return &GHCNClient{host: ghcnFTPHost}
}

// FetchDaily retrieves a station's .dly file and returns one RawDay
// per date carrying TMAX, TMIN and PRCP. GHCN has no sunshine
// duration, so that field stays nil.
func (g *GHCNClient) FetchDaily(stationID string) ([]weather.RawDay, error) {
	conn, err := ftp.Dial(g.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		metrics.WeatherAPICallsTotal.WithLabelValues(stationID, "ghcn_daily", "error").Inc()
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(fmt.Sprintf("%s/%s.dly", ghcnDirPath, stationID))
	if err != nil {
		metrics.WeatherAPICallsTotal.WithLabelValues(stationID, "ghcn_daily", "error").Inc()
		return nil, fmt.Errorf("ftp retr %s: %w", stationID, err)
	}
	defer resp.Close()

	days, err := ParseDLY(resp)
	if err != nil {
		return nil, err
	}
	metrics.WeatherAPICallsTotal.WithLabelValues(stationID, "ghcn_daily", "ok").Inc()
	return days, nil
}

// ParseDLY decodes GHCN-Daily fixed-width records. Each line holds one
// (station, year, month, element) with 31 day slots of 8 characters:
// a 5-character value followed by three flag characters. Temperatures
// are tenths of a degree C, precipitation tenths of a millimeter.
func ParseDLY(r io.Reader) ([]weather.RawDay, error) {
	type dayValues struct {
		tempMax *float64
		tempMin *float64
		precip  *float64
	}
	byDate := make(map[time.Time]*dayValues)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if len(text) < 21+8 {
			return nil, fmt.Errorf("ghcn line %d: short record (%d chars)", line, len(text))
		}

		element := text[17:21]
		if element != "TMAX" && element != "TMIN" && element != "PRCP" {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(text[11:15]))
		if err != nil {
			return nil, fmt.Errorf("ghcn line %d: parse year: %w", line, err)
		}
		month, err := strconv.Atoi(strings.TrimSpace(text[15:17]))
		if err != nil {
			return nil, fmt.Errorf("ghcn line %d: parse month: %w", line, err)
		}

		daysInMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		for day := 1; day <= daysInMonth; day++ {
			start := 21 + (day-1)*8
			if start+5 > len(text) {
				break
			}
			raw, err := strconv.Atoi(strings.TrimSpace(text[start : start+5]))
			if err != nil || raw == ghcnMissing {
				continue
			}
			v := float64(raw) / 10

			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			dv := byDate[date]
			if dv == nil {
				dv = &dayValues{}
				byDate[date] = dv
			}
			switch element {
			case "TMAX":
				dv.tempMax = &v
			case "TMIN":
				dv.tempMin = &v
			case "PRCP":
				dv.precip = &v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ghcn records: %w", err)
	}

	days := make([]weather.RawDay, 0, len(byDate))
	for date, dv := range byDate {
		days = append(days, weather.RawDay{
			Date:          date,
			TempMax:       dv.tempMax,
			TempMin:       dv.tempMin,
			Precipitation: dv.precip,
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}
