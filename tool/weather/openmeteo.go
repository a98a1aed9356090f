package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	maxBodySize         = 256 * 1024
)

// OpenMeteoBackend uses the keyless Open-Meteo geocoding and forecast APIs.
type OpenMeteoBackend struct {
	client       *http.Client
	geocodingURL string
	forecastURL  string
	language     string
}

// OpenMeteoOptions configures an OpenMeteoBackend.
type OpenMeteoOptions struct {
	GeocodingURL string
	ForecastURL  string
	Language     string // ISO 639-1 code for place names
	HTTPClient   *http.Client
}

// NewOpenMeteoBackend creates an Open-Meteo backend.
func NewOpenMeteoBackend(optFns ...func(o *OpenMeteoOptions)) *OpenMeteoBackend {
	opts := OpenMeteoOptions{
		GeocodingURL: defaultGeocodingURL,
		ForecastURL:  defaultForecastURL,
		Language:     "en",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &OpenMeteoBackend{
		client:       opts.HTTPClient,
		geocodingURL: opts.GeocodingURL,
		forecastURL:  opts.ForecastURL,
		language:     opts.Language,
	}
}

// Name implements Backend.
func (b *OpenMeteoBackend) Name() string { return "open-meteo" }

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Lookup implements Backend.
func (b *OpenMeteoBackend) Lookup(ctx context.Context, city string) (Report, error) {
	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", b.language)
	q.Set("format", "json")

	var geo geocodingResponse
	if err := b.getJSON(ctx, b.geocodingURL, q, &geo); err != nil {
		return Report{}, fmt.Errorf("geocoding: %w", err)
	}

	if len(geo.Results) == 0 {
		return Report{}, fmt.Errorf("no location found for %q", city)
	}

	place := geo.Results[0]

	parts := []string{place.Name}
	if place.Admin1 != "" && place.Admin1 != place.Name {
		parts = append(parts, place.Admin1)
	}

	if place.Country != "" {
		parts = append(parts, place.Country)
	}

	report := Report{
		Location:  strings.Join(parts, ", "),
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
	}

	fq := url.Values{}
	fq.Set("latitude", strconv.FormatFloat(place.Latitude, 'f', 4, 64))
	fq.Set("longitude", strconv.FormatFloat(place.Longitude, 'f', 4, 64))
	fq.Set("current", "temperature_2m,wind_speed_10m,weather_code")

	var fc forecastResponse
	if err := b.getJSON(ctx, b.forecastURL, fq, &fc); err != nil {
		return Report{}, fmt.Errorf("forecast: %w", err)
	}

	report.Temperature = fc.Current.Temperature
	report.WindSpeed = fc.Current.WindSpeed
	report.Condition = describeWeatherCode(fc.Current.WeatherCode)
	report.HasCurrent = true

	return report, nil
}

func (b *OpenMeteoBackend) getJSON(ctx context.Context, base string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

// describeWeatherCode maps WMO weather interpretation codes to text.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
