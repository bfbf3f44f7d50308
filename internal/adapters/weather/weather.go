// Package weather answers temperature questions from Prometheus gauges
// fed by local sensors.
package weather

import (
	"context"
	"fmt"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
)

// Adapter exposes a get_weather_temperature command. Each configured
// location maps to a Prometheus gauge; the tool result feeds back into
// the conversation together with an evaluate request so the model can
// phrase the answer.
type Adapter struct {
	actions action.Set
	cfg     config.WeatherConfig
	prom    *promClient
	log     *logging.Logger
}

// New creates the weather adapter.
func New(cfg config.WeatherConfig, log *logging.Logger) *Adapter {
	return &Adapter{
		cfg:  cfg,
		prom: newPromClient(cfg.PrometheusEndpoint),
		log:  log.Sub("weather"),
	}
}

// Initialise declares the adapter's actions.
func (a *Adapter) Initialise(ctx context.Context) error {
	locations := make([]string, 0, len(a.cfg.Locations))
	for _, loc := range a.cfg.Locations {
		locations = append(locations, loc.Name)
	}

	a.actions.Add(action.Action{
		ID:          "get_weather_temperature",
		Kind:        action.KindCommand,
		Description: "Gets the temperature",
		Parameters: []action.Parameter{
			{
				Name:        "location",
				Type:        action.TypeString,
				Enum:        locations,
				Description: "Location we are fetching the weather from.",
			},
		},
		Handler: a.handleTemperature,
	})

	a.log.Info().Int("locations", len(locations)).Msg("initialised")
	return nil
}

// Invoke runs the matching action, or returns nil on a miss.
func (a *Adapter) Invoke(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	return a.actions.Invoke(ctx, inv)
}

// Actions returns the adapter's declared actions.
func (a *Adapter) Actions() []action.Action {
	return a.actions.Actions()
}

func (a *Adapter) location(inv action.Invocation) (config.WeatherLocation, bool) {
	name, _ := inv.Parameters["location"].(string)
	if name == "" {
		name = a.cfg.DefaultLocation
	}
	for _, loc := range a.cfg.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return config.WeatherLocation{}, false
}

func (a *Adapter) handleTemperature(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	if inv.ToolID == "" {
		return nil, fmt.Errorf("get_weather_temperature requires a tool id")
	}

	loc, ok := a.location(inv)
	if !ok {
		return nil, fmt.Errorf("unknown weather location %v", inv.Parameters["location"])
	}

	a.log.Info().Str("location", loc.Name).Msg("fetching temperature")

	samples, err := a.prom.queryGauge(ctx, loc.Gauge, loc.Series)
	if err != nil {
		return nil, fmt.Errorf("querying gauge %s: %w", loc.Gauge, err)
	}

	for _, sample := range samples {
		if sample.Metric["__name__"] != loc.Gauge {
			continue
		}
		return &action.Result{
			Success: true,
			Items: []action.ResultItem{
				action.ToolMessageItem{
					ToolID:  inv.ToolID,
					Message: fmt.Sprintf("Weather is %s degrees in %s", sample.Value, loc.Name),
				},
				action.EvaluateItem{},
			},
		}, nil
	}

	a.log.Warn().Str("gauge", loc.Gauge).Msg("gauge missing from query result")
	return &action.Result{Success: false}, nil
}
