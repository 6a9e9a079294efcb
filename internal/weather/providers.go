// Package weather fetches the current conditions used to bias recommendations.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ashureev/lunchbot/internal/domain"
)

// Report is one observation from a provider.
type Report struct {
	Condition   domain.Weather `json:"condition"`
	Description string         `json:"description"`
	TempC       float64        `json:"temp_c"`
	HasTemp     bool           `json:"has_temp"`
	Provider    string         `json:"provider"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Provider fetches current weather from one upstream.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Report, error)
}

// ErrBadResponse reports an upstream answer that could not be used.
var ErrBadResponse = errors.New("weather: bad upstream response")

const (
	defaultWttrURL      = "https://wttr.in"
	defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"
	maxBodyBytes        = 64 << 10
)

// Wttr queries wttr.in in its one-line text format.
type Wttr struct {
	BaseURL  string
	Location string
	Client   *http.Client
}

// NewWttr creates a wttr.in provider for location.
func NewWttr(location string, client *http.Client) *Wttr {
	return &Wttr{BaseURL: defaultWttrURL, Location: location, Client: client}
}

// Name returns the provider label.
func (w *Wttr) Name() string { return "wttr" }

// Fetch returns the current condition for the configured location.
func (w *Wttr) Fetch(ctx context.Context) (Report, error) {
	endpoint := fmt.Sprintf("%s/%s?format=%s",
		strings.TrimRight(w.BaseURL, "/"), url.PathEscape(w.Location), url.QueryEscape("%C %t"))

	body, err := get(ctx, w.Client, endpoint)
	if err != nil {
		return Report{}, err
	}

	desc, temp, hasTemp := parseWttr(string(body))
	if desc == "" {
		return Report{}, fmt.Errorf("%w: empty wttr body", ErrBadResponse)
	}
	return Report{
		Condition:   Classify(desc, temp, hasTemp),
		Description: desc,
		TempC:       temp,
		HasTemp:     hasTemp,
		Provider:    w.Name(),
	}, nil
}

// parseWttr splits "Light rain +12°C" into the description and temperature.
func parseWttr(text string) (string, float64, bool) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return "", 0, false
	}
	if len(parts) == 1 {
		return strings.ToLower(parts[0]), 0, false
	}

	last := parts[len(parts)-1]
	raw := strings.NewReplacer("+", "", "°C", "", "℃", "", "C", "").Replace(last)
	temp, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return strings.ToLower(strings.Join(parts, " ")), 0, false
	}
	return strings.ToLower(strings.Join(parts[:len(parts)-1], " ")), temp, true
}

// OpenMeteo queries the Open-Meteo forecast API by coordinates.
type OpenMeteo struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Client    *http.Client
}

// NewOpenMeteo creates an Open-Meteo provider for the given coordinates.
func NewOpenMeteo(lat, lon float64, client *http.Client) *OpenMeteo {
	return &OpenMeteo{BaseURL: defaultOpenMeteoURL, Latitude: lat, Longitude: lon, Client: client}
}

// Name returns the provider label.
func (o *OpenMeteo) Name() string { return "open-meteo" }

type openMeteoResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current_weather"`
}

// Fetch returns the current condition at the configured coordinates.
func (o *OpenMeteo) Fetch(ctx context.Context) (Report, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(o.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(o.Longitude, 'f', 4, 64))
	q.Set("current_weather", "true")

	body, err := get(ctx, o.Client, o.BaseURL+"?"+q.Encode())
	if err != nil {
		return Report{}, err
	}

	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Report{}, fmt.Errorf("%w: decode open-meteo: %v", ErrBadResponse, err)
	}
	cw := resp.CurrentWeather
	if cw == nil || cw.Temperature == nil || cw.WeatherCode == nil {
		return Report{}, fmt.Errorf("%w: open-meteo missing current_weather", ErrBadResponse)
	}

	desc := describeCode(*cw.WeatherCode)
	return Report{
		Condition:   Classify(desc, *cw.Temperature, true),
		Description: desc,
		TempC:       *cw.Temperature,
		HasTemp:     true,
		Provider:    o.Name(),
	}, nil
}

// describeCode maps a WMO weather code to a wttr-style description.
func describeCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3, code == 45, code == 48:
		return "cloudy"
	case code >= 51 && code <= 67, code >= 80 && code <= 82, code >= 95:
		return "rain"
	case code >= 71 && code <= 77, code == 85, code == 86:
		return "snow"
	default:
		return "cloudy"
	}
}

// Classify maps a description and temperature to a Weather. Precipitation
// wins over temperature; temperature wins over cloud cover.
func Classify(desc string, tempC float64, hasTemp bool) domain.Weather {
	d := strings.ToLower(desc)
	switch {
	case containsAny(d, "rain", "drizzle", "shower", "thunder", "비"):
		return domain.WeatherRain
	case containsAny(d, "snow", "sleet", "blizzard", "눈"):
		return domain.WeatherSnow
	}

	if hasTemp {
		switch {
		case tempC <= -5:
			return domain.WeatherFreezing
		case tempC < 10:
			return domain.WeatherCold
		case tempC >= 28:
			return domain.WeatherHot
		}
	}

	if containsAny(d, "cloud", "overcast", "mist", "fog", "haze", "흐림") {
		return domain.WeatherCloudy
	}
	return domain.WeatherClear
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func get(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/8.0 lunchbot")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
