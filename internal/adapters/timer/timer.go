// Package timer lets the assistant set spoken alarms.
package timer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
)

// Adapter exposes a set_timer command that schedules the internal
// run_timer job. When a chime file is configured the firing timer plays
// it; otherwise the notification is spoken.
type Adapter struct {
	actions action.Set
	cfg     config.TimerConfig
	now     func() int64
	log     *logging.Logger
}

// New creates the timer adapter.
func New(cfg config.TimerConfig, log *logging.Logger) *Adapter {
	return &Adapter{
		cfg: cfg,
		now: func() int64 { return time.Now().Unix() },
		log: log.Sub("timer"),
	}
}

// Initialise declares the adapter's actions.
func (a *Adapter) Initialise(ctx context.Context) error {
	a.actions.Add(action.Action{
		ID:          "set_timer",
		Kind:        action.KindCommand,
		Description: "Sets a timer for a specified duration for an alarm",
		Parameters: []action.Parameter{
			{
				Name:        "duration",
				Type:        action.TypeNumber,
				Required:    true,
				Description: "Duration of timer, in seconds",
			},
		},
		Handler: a.handleSetTimer,
	})

	a.actions.Add(action.Action{
		ID:      "run_timer",
		Kind:    action.KindJob,
		Handler: a.handleRunTimer,
	})

	a.log.Info().Msg("initialised")
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

func (a *Adapter) handleSetTimer(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	if inv.ToolID == "" {
		return nil, fmt.Errorf("set_timer requires a tool id")
	}

	duration, ok := inv.Parameters["duration"].(float64)
	if !ok || duration <= 0 {
		return nil, fmt.Errorf("set_timer requires a positive duration, got %v", inv.Parameters["duration"])
	}

	executeAt := a.now() + int64(duration)

	a.log.Info().Int64("executeAt", executeAt).Msg("timer set")

	return &action.Result{
		Success: true,
		Items: []action.ResultItem{
			action.ScheduleItem{
				ExecuteAt:  executeAt,
				ActionID:   "run_timer",
				Parameters: map[string]any{},
			},
			action.ToolMessageItem{
				ToolID:  inv.ToolID,
				Message: fmt.Sprintf("Okay, timer set for %d seconds.", int64(duration)),
			},
		},
	}, nil
}

func (a *Adapter) handleRunTimer(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	a.log.Info().Msg("timer fired")

	if a.cfg.ChimePath != "" {
		chime, err := os.ReadFile(a.cfg.ChimePath)
		if err == nil {
			return &action.Result{
				Success: true,
				Items:   []action.ResultItem{action.SoundItem{Data: chime}},
			}, nil
		}
		a.log.Warn().Err(err).Str("path", a.cfg.ChimePath).Msg("reading chime failed, speaking instead")
	}

	return &action.Result{
		Success: true,
		Items:   []action.ResultItem{action.SpeakItem{Message: a.cfg.Message}},
	}, nil
}
