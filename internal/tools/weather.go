package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	geocodeEndpoint  = "https://geocoding-api.open-meteo.com/v1/search"
	forecastEndpoint = "https://api.open-meteo.com/v1/forecast"
)

// wmoConditions maps WMO weather codes to Ukrainian descriptions.
var wmoConditions = map[int]string{
	0:  "Ясно ☀️",
	1:  "Переважно ясно 🌤️",
	2:  "Частково хмарно ⛅",
	3:  "Хмарно ☁️",
	45: "Туман 🌫️",
	48: "Туман з інеєм 🌫️",
	51: "Легка мряка 🌧️",
	53: "Помірна мряка 🌧️",
	55: "Сильна мряка 🌧️",
	61: "Легкий дощ 🌧️",
	63: "Помірний дощ 🌧️",
	65: "Сильний дощ 🌧️",
	71: "Легкий сніг 🌨️",
	73: "Помірний сніг 🌨️",
	75: "Сильний сніг 🌨️",
	80: "Легкі зливи 🌦️",
	81: "Помірні зливи 🌦️",
	82: "Сильні зливи 🌦️",
	95: "Гроза ⛈️",
	96: "Гроза з градом ⛈️",
	99: "Сильна гроза з градом ⛈️",
}

// WeatherTool reports current weather via the Open-Meteo API (free, no key).
type WeatherTool struct {
	client *http.Client
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *WeatherTool) Name() string { return "weather" }

func (t *WeatherTool) Description() string {
	return "Get current weather and forecast for a location. Provides temperature, conditions, humidity, and wind."
}

func (t *WeatherTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "City name or location (e.g., 'Kyiv', 'London, UK')",
			},
		},
		"required": []string{"location"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any, _ Caller) *Result {
	location, _ := args["location"].(string)
	if location == "" {
		return Failed("location is required")
	}

	lat, lon, name, err := t.geocode(ctx, location)
	if err != nil {
		return Failed(fmt.Sprintf("Location not found: %s", location))
	}

	w, err := t.current(ctx, lat, lon)
	if err != nil {
		return Failed(fmt.Sprintf("Weather fetch failed: %v", err))
	}

	output := fmt.Sprintf(`🌤️ Погода в %s:
• Температура: %.1f°C (відчувається як %.1f°C)
• Умови: %s
• Вологість: %.0f%%
• Вітер: %.1f км/год
• Опади: %.1f мм`,
		name, w.Temp, w.FeelsLike, w.Conditions, w.Humidity, w.WindSpeed, w.Precipitation)

	return OKData(output, w)
}

type weatherReport struct {
	Temp          float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
	Conditions    string  `json:"conditions"`
}

func (t *WeatherTool) geocode(ctx context.Context, location string) (lat, lon float64, name string, err error) {
	q := url.Values{"name": {location}, "count": {"1"}, "language": {"uk"}}
	var payload struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
		} `json:"results"`
	}
	if err := t.getJSON(ctx, geocodeEndpoint+"?"+q.Encode(), &payload); err != nil {
		return 0, 0, "", err
	}
	if len(payload.Results) == 0 {
		return 0, 0, "", fmt.Errorf("no geocoding results for %q", location)
	}
	r := payload.Results[0]
	if r.Name == "" {
		r.Name = location
	}
	return r.Latitude, r.Longitude, r.Name, nil
}

func (t *WeatherTool) current(ctx context.Context, lat, lon float64) (*weatherReport, error) {
	q := url.Values{
		"latitude":  {fmt.Sprintf("%f", lat)},
		"longitude": {fmt.Sprintf("%f", lon)},
		"current":   {"temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m"},
		"timezone":  {"auto"},
	}
	var payload struct {
		Current struct {
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			Apparent      float64 `json:"apparent_temperature"`
			Precipitation float64 `json:"precipitation"`
			WeatherCode   int     `json:"weather_code"`
			WindSpeed     float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := t.getJSON(ctx, forecastEndpoint+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	c := payload.Current
	conditions, ok := wmoConditions[c.WeatherCode]
	if !ok {
		conditions = fmt.Sprintf("Код: %d", c.WeatherCode)
	}
	return &weatherReport{
		Temp:          c.Temperature,
		FeelsLike:     c.Apparent,
		Humidity:      c.Humidity,
		Precipitation: c.Precipitation,
		WindSpeed:     c.WindSpeed,
		Conditions:    conditions,
	}, nil
}

func (t *WeatherTool) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
