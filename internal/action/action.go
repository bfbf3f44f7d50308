// Package action holds the adapter registry, the delayed-action scheduler,
// and the per-client event fan-out that together route model tool calls to
// device adapters.
package action

import "context"

// Kind distinguishes actions the conversation may call from internal jobs.
type Kind string

const (
	// KindCommand is exposed to the language model as a callable tool.
	KindCommand Kind = "command"
	// KindJob is reachable only through the scheduler, never the model.
	KindJob Kind = "job"
)

// ParamType is the JSON-schema type of an action parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
)

// Parameter describes one input to an action. Type defaults to string
// when empty.
type Parameter struct {
	Name        string
	Type        ParamType
	Enum        []string
	Required    bool
	Description string
}

// Invocation is a single request to run an action. ToolID correlates the
// invocation with the model tool call that produced it; it is empty for
// scheduled invocations.
type Invocation struct {
	ID         string
	Parameters map[string]any
	ToolID     string
}

// Handler runs an action and returns its result items.
type Handler func(ctx context.Context, inv Invocation) (*Result, error)

// Action is an invocable unit declared by an adapter at initialise time
// and immutable thereafter.
type Action struct {
	ID          string
	Kind        Kind
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Result is the outcome of one handler invocation. When Success is false
// the items are discarded by the dispatcher.
type Result struct {
	Success bool
	Items   []ResultItem
}

// Adapter is a pluggable unit owning a set of related actions.
type Adapter interface {
	// Initialise populates the adapter's action set. Called once, before
	// any Invoke.
	Initialise(ctx context.Context) error

	// Invoke runs the action matching the invocation's id. A nil result
	// means the adapter does not own that id.
	Invoke(ctx context.Context, inv Invocation) (*Result, error)

	// Actions returns every action the adapter declares, jobs included.
	Actions() []Action
}

// Set is an ordered action list adapters embed to get Invoke and Actions
// for free.
type Set struct {
	actions []Action
}

// Add appends an action to the set.
func (s *Set) Add(a Action) {
	s.actions = append(s.actions, a)
}

// Invoke runs the first action whose id matches, or returns nil on a miss.
func (s *Set) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	for _, a := range s.actions {
		if a.ID == inv.ID {
			return a.Handler(ctx, inv)
		}
	}
	return nil, nil
}

// Actions returns all actions in declaration order.
func (s *Set) Actions() []Action {
	return s.actions
}
