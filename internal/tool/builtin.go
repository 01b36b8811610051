package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polyagent/internal/config"
)

const userAgent = "Mozilla/5.0 (compatible; polyagent/1.0)"

// CurrencyTool converts amounts using the latest published exchange rates.
type CurrencyTool struct {
	baseURL string
	client  *http.Client
}

// NewCurrencyTool creates a currency converter against an open.er-api compatible endpoint.
func NewCurrencyTool(baseURL string, timeout time.Duration) *CurrencyTool {
	return &CurrencyTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *CurrencyTool) Name() string { return "convert_currency" }
func (t *CurrencyTool) Description() string {
	return "Converts currency using latest exchange rates. Returns the converted amount in the target currency."
}

func (t *CurrencyTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "amount", Type: "number", Description: "Amount to convert"},
		{Name: "from_currency", Type: "string", Description: "Source currency code (e.g., USD)"},
		{Name: "to_currency", Type: "string", Description: "Target currency code (e.g., EUR)"},
	}
}

// Execute returns "<amount> <CUR>" on success. Failures reaching the rates API are
// reported in the result text so the model can explain them.
func (t *CurrencyTool) Execute(ctx context.Context, args Args) (string, error) {
	amount, err := args.Float("amount")
	if err != nil {
		return "", err
	}
	from, err := args.String("from_currency")
	if err != nil {
		return "", err
	}
	to, err := args.String("to_currency")
	if err != nil {
		return "", err
	}
	from, to = strings.ToUpper(strings.TrimSpace(from)), strings.ToUpper(strings.TrimSpace(to))

	var data struct {
		Result string             `json:"result"`
		Rates  map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, t.client, t.baseURL+"/"+url.PathEscape(from), &data); err != nil {
		return "Error converting currency: " + err.Error(), nil
	}
	if data.Rates == nil {
		return "Error: Could not fetch exchange rates", nil
	}
	rate, ok := data.Rates[to]
	if !ok || rate == 0 {
		return "Error: No rate found for " + to, nil
	}
	return fmt.Sprintf("%.2f %s", amount*rate, to), nil
}

// WeatherTool reports current conditions from OpenWeatherMap.
type WeatherTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWeatherTool creates a weather tool.
func NewWeatherTool(baseURL, apiKey string, timeout time.Duration) *WeatherTool {
	return &WeatherTool{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *WeatherTool) Name() string { return "current_weather" }
func (t *WeatherTool) Description() string {
	return "Get the current weather for a given city. Returns the city, temperature in °C, conditions, humidity and wind speed."
}

func (t *WeatherTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "city_name", Type: "string", Description: "Name of the city to get weather for."},
		{Name: "country_name", Type: "string", Description: "Name of the Country where the city is."},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args Args) (string, error) {
	city, err := args.String("city_name")
	if err != nil {
		return "", err
	}
	country, err := args.String("country_name")
	if err != nil {
		return "", err
	}
	if t.apiKey == "" {
		return "Error: weather API key is not configured", nil
	}

	q := url.Values{}
	q.Set("q", city+","+country)
	q.Set("appid", t.apiKey)
	q.Set("units", "metric")

	var data struct {
		Name string `json:"name"`
		Main *struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := getJSON(ctx, t.client, t.baseURL+"?"+q.Encode(), &data); err != nil {
		return "Error: " + err.Error(), nil
	}
	if data.Main == nil || len(data.Weather) == 0 {
		return "Error: Unexpected response format", nil
	}

	out, _ := json.Marshal(map[string]any{
		"City":             data.Name,
		"Temperature (°C)": data.Main.Temp,
		"Weather":          data.Weather[0].Description,
		"Humidity (%)":     data.Main.Humidity,
		"Wind Speed (m/s)": data.Wind.Speed,
	})
	return string(out), nil
}

// knownCities maps lower-case city names to ISO country codes.
var knownCities = map[string]string{
	"cary":          "US",
	"raleigh":       "US",
	"new york":      "US",
	"san francisco": "US",
	"london":        "GB",
	"paris":         "FR",
	"berlin":        "DE",
	"madrid":        "ES",
	"rome":          "IT",
	"tokyo":         "JP",
	"toronto":       "CA",
	"sydney":        "AU",
	"mumbai":        "IN",
	"bengaluru":     "IN",
	"singapore":     "SG",
}

// NewCountryTool returns the country_for_city tool. Unknown cities resolve to "US".
func NewCountryTool() *Func {
	return New("country_for_city",
		"Get the country name for the given city name.",
		[]Parameter{{Name: "city_name", Type: "string", Description: "Name of the city."}},
		func(ctx context.Context, args Args) (string, error) {
			city, err := args.String("city_name")
			if err != nil {
				return "", err
			}
			if code, ok := knownCities[strings.ToLower(strings.TrimSpace(city))]; ok {
				return code, nil
			}
			return "US", nil
		})
}

// NewLocationTool returns the get_current_location tool reporting a fixed location.
func NewLocationTool(location string) *Func {
	if location == "" {
		location = "Cary, US"
	}
	return New("get_current_location",
		"Get the city and country name of the current location.",
		nil,
		func(ctx context.Context, args Args) (string, error) {
			return location, nil
		})
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RegisterBuiltins registers the built-in tools named in cfg.Enabled, or all of them when
// the list is empty. The browser-backed tool is registered only when the browser is enabled.
func RegisterBuiltins(r *Registry, cfg config.ToolsConfig, browser config.BrowserConfig) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	all := []Tool{
		NewCurrencyTool(cfg.CurrencyBaseURL, timeout),
		NewWeatherTool(cfg.WeatherBaseURL, cfg.WeatherAPIKey, timeout),
		NewCountryTool(),
		NewLocationTool(cfg.Location),
		NewWebSearchTool(timeout),
	}
	if browser.Enabled {
		all = append(all, NewWebPageTool(browser))
	}

	enabled := make(map[string]bool, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		enabled[name] = true
	}
	for _, t := range all {
		if len(enabled) == 0 || enabled[t.Name()] {
			r.Register(t)
		}
	}
}
