package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"homehub/internal/config"
)

// Current is a point-in-time weather snapshot for the configured city.
type Current struct {
	Temperature  float64   `json:"temperature"`
	Humidity     int       `json:"humidity"`
	Description  string    `json:"description"`
	WindSpeed    float64   `json:"wind_speed"`
	Pressure     int       `json:"pressure"`
	VisibilityKM float64   `json:"visibility"`
	Timestamp    time.Time `json:"timestamp"`
}

// ForecastEntry is one 3-hour forecast slot.
type ForecastEntry struct {
	Time            time.Time `json:"datetime"`
	Temperature     float64   `json:"temperature"`
	Humidity        int       `json:"humidity"`
	Description     string    `json:"description"`
	RainProbability float64   `json:"rain_probability"`
	WindSpeed       float64   `json:"wind_speed"`
}

// Client talks to the OpenWeatherMap API.
type Client struct {
	apiKey  string
	city    string
	baseURL string
	client  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.Weather.APIKey,
		city:    cfg.Weather.City,
		baseURL: cfg.Weather.BaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type owmWeather struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility int `json:"visibility"`
}

type owmForecast struct {
	List []struct {
		DT   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop float64 `json:"pop"`
	} `json:"list"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("q", c.city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CurrentWeather(ctx context.Context) (*Current, error) {
	var raw owmWeather
	if err := c.get(ctx, "/weather", url.Values{}, &raw); err != nil {
		return nil, err
	}

	current := &Current{
		Temperature:  raw.Main.Temp,
		Humidity:     raw.Main.Humidity,
		Pressure:     raw.Main.Pressure,
		WindSpeed:    raw.Wind.Speed,
		VisibilityKM: float64(raw.Visibility) / 1000,
		Timestamp:    time.Now(),
	}
	if len(raw.Weather) > 0 {
		current.Description = raw.Weather[0].Description
	}
	return current, nil
}

// Forecast returns 3-hour forecast slots covering the next `days` days.
func (c *Client) Forecast(ctx context.Context, days int) ([]ForecastEntry, error) {
	if days <= 0 {
		days = 5
	}

	params := url.Values{}
	params.Set("cnt", strconv.Itoa(days*8)) // 8 slots per day at 3-hour intervals

	var raw owmForecast
	if err := c.get(ctx, "/forecast", params, &raw); err != nil {
		return nil, err
	}

	entries := make([]ForecastEntry, 0, len(raw.List))
	for _, item := range raw.List {
		entry := ForecastEntry{
			Time:            time.Unix(item.DT, 0),
			Temperature:     item.Main.Temp,
			Humidity:        item.Main.Humidity,
			WindSpeed:       item.Wind.Speed,
			RainProbability: item.Pop * 100,
		}
		if len(item.Weather) > 0 {
			entry.Description = item.Weather[0].Description
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
