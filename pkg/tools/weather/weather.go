// Package weather provides current and forecast weather capabilities
// backed by WeatherAPI.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/tools"
)

const maxForecastDays = 14

func init() {
	locationParam := &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     `City, ZIP, coordinates, airport code, or "auto:ip"`,
		Required: true,
	}

	tools.Register(tools.Definition{
		Name:         "get_current_weather_by_location",
		Label:        "Getting Current Weather...",
		Description:  "Get the current weather conditions for any location.",
		SamplePrompt: "What's the weather like today?",
		Params: map[string]*schema.ParameterInfo{
			"location": locationParam,
		},
	}, currentWeather)

	tools.Register(tools.Definition{
		Name:        "get_forecast_weather_by_location",
		Label:       "Getting Forecast Weather...",
		Description: "Get a daily weather forecast for any location, 1 to 14 days ahead.",
		Params: map[string]*schema.ParameterInfo{
			"location": locationParam,
			"days": {
				Type: schema.Integer,
				Desc: "Forecast days 1-14 (default 5)",
			},
		},
	}, forecastWeather)
}

type weatherArgs struct {
	Location string `json:"location"`
	Days     int    `json:"days"`
}

func parseArgs(raw json.RawMessage) (weatherArgs, error) {
	var args weatherArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, errors.Wrap(err, "parse arguments")
	}
	if args.Location == "" {
		return args, errors.New("location is required")
	}
	return args, nil
}

func apiKey() (string, error) {
	key := tools.Conf().WeatherAPIKey
	if key == "" {
		return "", errors.New("weatherapi key not configured")
	}
	return key, nil
}

type conditions struct {
	TempC     float64 `json:"temp_c"`
	Condition struct {
		Text string `json:"text"`
	} `json:"condition"`
	WindKph  float64 `json:"wind_kph"`
	Humidity int     `json:"humidity"`
}

type place struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

func currentWeather(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	key, err := apiKey()
	if err != nil {
		return "", err
	}

	var payload struct {
		Location place      `json:"location"`
		Current  conditions `json:"current"`
	}
	reqURL := fmt.Sprintf("https://api.weatherapi.com/v1/current.json?key=%s&q=%s",
		url.QueryEscape(key), url.QueryEscape(args.Location))
	if err := tools.FetchJSON(ctx, reqURL, nil, &payload); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s, %s: %s, %.1fC, wind %.0f kph, humidity %d%%",
		payload.Location.Name, payload.Location.Country,
		payload.Current.Condition.Text, payload.Current.TempC,
		payload.Current.WindKph, payload.Current.Humidity), nil
}

func forecastWeather(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	key, err := apiKey()
	if err != nil {
		return "", err
	}
	days := args.Days
	if days < 1 {
		days = 5
	}
	if days > maxForecastDays {
		days = maxForecastDays
	}

	var payload struct {
		Location place `json:"location"`
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempC  float64 `json:"maxtemp_c"`
					MinTempC  float64 `json:"mintemp_c"`
					Condition struct {
						Text string `json:"text"`
					} `json:"condition"`
					ChanceOfRain int `json:"daily_chance_of_rain"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	reqURL := fmt.Sprintf("https://api.weatherapi.com/v1/forecast.json?key=%s&q=%s&days=%d",
		url.QueryEscape(key), url.QueryEscape(args.Location), days)
	if err := tools.FetchJSON(ctx, reqURL, nil, &payload); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s, %s:", payload.Location.Name, payload.Location.Country)
	for _, day := range payload.Forecast.ForecastDay {
		fmt.Fprintf(&b, "\n%s: %s, %.1fC to %.1fC, rain chance %d%%",
			day.Date, day.Day.Condition.Text, day.Day.MinTempC, day.Day.MaxTempC, day.Day.ChanceOfRain)
	}
	return b.String(), nil
}
