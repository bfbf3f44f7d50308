// Package convend exposes the command the model calls to close a
// conversation instead of leaving it to idle out.
package convend

import (
	"context"
	"fmt"

	"github.com/soyeahso/gerald/internal/action"
	"github.com/soyeahso/gerald/internal/logging"
)

// Adapter declares the end_conversation command.
type Adapter struct {
	actions action.Set
	log     *logging.Logger
}

// New creates the conversation-end adapter.
func New(log *logging.Logger) *Adapter {
	return &Adapter{log: log.Sub("convend")}
}

// Initialise declares the adapter's actions.
func (a *Adapter) Initialise(ctx context.Context) error {
	a.actions.Add(action.Action{
		ID:          "end_conversation",
		Kind:        action.KindCommand,
		Description: "Ends a conversation when there is no open-ended question.",
		Handler:     a.handleEnd,
	})
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

func (a *Adapter) handleEnd(ctx context.Context, inv action.Invocation) (*action.Result, error) {
	if inv.ToolID == "" {
		return nil, fmt.Errorf("end_conversation requires a tool id")
	}

	return &action.Result{
		Success: true,
		Items:   []action.ResultItem{action.EndConversationItem{}},
	}, nil
}
