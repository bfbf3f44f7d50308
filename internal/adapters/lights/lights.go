// Package lights controls LIFX bulbs through the LIFX HTTP API.
package lights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
)

// Adapter exposes light power and profile commands. Spoken location
// names map to LIFX selectors through config.
type Adapter struct {
	actions    action.Set
	cfg        config.LifxConfig
	httpClient *http.Client
	log        *logging.Logger
}

// New creates the lights adapter.
func New(cfg config.LifxConfig, log *logging.Logger) *Adapter {
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        log.Sub("lights"),
	}
}

// Initialise declares the adapter's actions with the configured location
// names as the enum the model picks from.
func (a *Adapter) Initialise(ctx context.Context) error {
	locations := make([]string, 0, len(a.cfg.Locations))
	for _, loc := range a.cfg.Locations {
		locations = append(locations, loc.Name)
	}

	locationParam := action.Parameter{
		Name:        "location",
		Enum:        locations,
		Description: "Placement or location of light",
	}

	a.actions.Add(action.Action{
		ID:          "turn_lights_on",
		Kind:        action.KindCommand,
		Description: "Turn the lights on",
		Parameters:  []action.Parameter{locationParam},
		Handler:     a.handlePower("on", "Okay, lights on."),
	})

	a.actions.Add(action.Action{
		ID:          "turn_lights_off",
		Kind:        action.KindCommand,
		Description: "Turn the lights off",
		Parameters:  []action.Parameter{locationParam},
		Handler:     a.handlePower("off", "Okay, lights off."),
	})

	a.actions.Add(action.Action{
		ID:          "change_lights_profile",
		Kind:        action.KindCommand,
		Description: "Changes light brightness and color",
		Parameters: []action.Parameter{
			locationParam,
			{
				Name: "brightness",
				Type: action.TypeString,
				Description: "Brightness of light, absolute or relative. For relative, prefix with " +
					"plus (+) or minus (-). For absolute, provide whole value",
			},
			{
				Name:        "color",
				Type:        action.TypeString,
				Description: "The color of the light. Value must be RGB hex string with # prefix",
			},
		},
		Handler: a.handleProfile,
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

// selector resolves a spoken location to a LIFX selector, defaulting to
// every light.
func (a *Adapter) selector(inv action.Invocation) string {
	name, _ := inv.Parameters["location"].(string)
	for _, loc := range a.cfg.Locations {
		if loc.Name == name {
			return loc.Selector
		}
	}
	return "all"
}

func (a *Adapter) handlePower(power, confirmation string) action.Handler {
	return func(ctx context.Context, inv action.Invocation) (*action.Result, error) {
		if inv.ToolID == "" {
			return nil, fmt.Errorf("%s requires a tool id", inv.ID)
		}

		if err := a.setState(ctx, a.selector(inv), map[string]any{"power": power}); err != nil {
			return nil, err
		}

		return &action.Result{
			Success: true,
			Items: []action.ResultItem{
				action.ToolMessageItem{ToolID: inv.ToolID, Message: confirmation},
			},
		}, nil
	}
}

func (a *Adapter) handleProfile(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	if inv.ToolID == "" {
		return nil, fmt.Errorf("change_lights_profile requires a tool id")
	}

	selector := a.selector(inv)
	state := map[string]any{}

	if raw, ok := inv.Parameters["brightness"].(string); ok && raw != "" {
		brightness, err := a.resolveBrightness(ctx, selector, raw)
		if err != nil {
			return nil, err
		}
		state["brightness"] = brightness
	}

	if color, ok := inv.Parameters["color"].(string); ok && color != "" {
		state["color"] = color
	}

	if len(state) > 0 {
		if err := a.setState(ctx, selector, state); err != nil {
			return nil, err
		}
	}

	return &action.Result{
		Success: true,
		Items: []action.ResultItem{
			action.ToolMessageItem{ToolID: inv.ToolID, Message: "Okay, lights updated."},
		},
	}, nil
}

// resolveBrightness turns "+20", "-20" or "65" into an absolute LIFX
// brightness in [0, 1], reading the current level for relative changes.
func (a *Adapter) resolveBrightness(ctx context.Context, selector, raw string) (float64, error) {
	var percent float64

	switch {
	case strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-"):
		delta, err := strconv.ParseFloat(raw[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing brightness %q: %w", raw, err)
		}
		current, err := a.currentBrightness(ctx, selector)
		if err != nil {
			return 0, err
		}
		if strings.HasPrefix(raw, "+") {
			percent = current*100 + delta
		} else {
			percent = current*100 - delta
		}
	default:
		abs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing brightness %q: %w", raw, err)
		}
		percent = abs
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent / 100, nil
}

func (a *Adapter) currentBrightness(ctx context.Context, selector string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/lights/%s", a.cfg.BaseURL, selector), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("listing lights: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("listing lights: unexpected status %d", resp.StatusCode)
	}

	var lights []struct {
		Brightness float64 `json:"brightness"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lights); err != nil {
		return 0, fmt.Errorf("decoding lights response: %w", err)
	}
	if len(lights) == 0 {
		return 0, fmt.Errorf("no lights matched selector %q", selector)
	}
	return lights[0].Brightness, nil
}

func (a *Adapter) setState(ctx context.Context, selector string, state map[string]any) error {
	body, err := json.Marshal(state)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/lights/%s/state", a.cfg.BaseURL, selector), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("setting light state: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("setting light state: unexpected status %d", resp.StatusCode)
	}

	a.log.Debug().Str("selector", selector).Interface("state", state).Msg("light state set")
	return nil
}
