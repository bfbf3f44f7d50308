package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/gerald/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// stubAdapter declares its actions at Initialise time like a real adapter.
type stubAdapter struct {
	Set
	actions []Action
	initErr error
	inited  bool
}

func (a *stubAdapter) Initialise(ctx context.Context) error {
	if a.initErr != nil {
		return a.initErr
	}
	a.inited = true
	for _, act := range a.actions {
		a.Add(act)
	}
	return nil
}

func okAction(id string, kind Kind, items ...ResultItem) Action {
	return Action{
		ID:   id,
		Kind: kind,
		Handler: func(ctx context.Context, inv Invocation) (*Result, error) {
			return &Result{Success: true, Items: items}, nil
		},
	}
}

func TestSet_InvokeMatch(t *testing.T) {
	var s Set
	s.Add(okAction("ping", KindCommand, SpeakItem{Message: "pong"}))

	res, err := s.Invoke(context.Background(), Invocation{ID: "ping"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, []ResultItem{SpeakItem{Message: "pong"}}, res.Items)
}

func TestSet_InvokeMiss(t *testing.T) {
	var s Set
	s.Add(okAction("ping", KindCommand))

	res, err := s.Invoke(context.Background(), Invocation{ID: "pong"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDispatcher_Initialise_InitialisesAllAdapters(t *testing.T) {
	a := &stubAdapter{actions: []Action{okAction("one", KindCommand)}}
	b := &stubAdapter{actions: []Action{okAction("two", KindCommand)}}

	d := NewDispatcher(testLogger())
	d.Register(a)
	d.Register(b)

	require.NoError(t, d.Initialise(context.Background()))
	assert.True(t, a.inited)
	assert.True(t, b.inited)
}

func TestDispatcher_Initialise_AdapterFailureIsFatal(t *testing.T) {
	boom := errors.New("no device")
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{okAction("one", KindCommand)}})
	d.Register(&stubAdapter{initErr: boom})

	err := d.Initialise(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_Initialise_DuplicateActionID(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{okAction("set_timer", KindCommand)}})
	d.Register(&stubAdapter{actions: []Action{okAction("set_timer", KindCommand)}})

	err := d.Initialise(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set_timer")
}

func TestDispatcher_Actions_ExcludesJobs(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{
		okAction("set_timer", KindCommand),
		okAction("run_timer", KindJob),
	}})
	require.NoError(t, d.Initialise(context.Background()))

	actions := d.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "set_timer", actions[0].ID)
}

// greedyAdapter answers every invocation, whatever the id.
type greedyAdapter struct {
	msg string
}

func (a *greedyAdapter) Initialise(ctx context.Context) error { return nil }

func (a *greedyAdapter) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	return &Result{Success: true, Items: []ResultItem{SpeakItem{Message: a.msg}}}, nil
}

func (a *greedyAdapter) Actions() []Action { return nil }

func TestDispatcher_Invoke_FirstRegisteredAdapterWins(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&greedyAdapter{msg: "first"})
	d.Register(&greedyAdapter{msg: "second"})
	require.NoError(t, d.Initialise(context.Background()))

	res, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "anything"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []ResultItem{SpeakItem{Message: "first"}}, res.Items)
}

func TestDispatcher_Invoke_UnknownActionIsNotAnError(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{okAction("one", KindCommand)}})
	require.NoError(t, d.Initialise(context.Background()))

	res, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "nope"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDispatcher_Invoke_HandlerError(t *testing.T) {
	boom := errors.New("lamp on fire")
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{{
		ID:   "burn",
		Kind: KindCommand,
		Handler: func(ctx context.Context, inv Invocation) (*Result, error) {
			return nil, boom
		},
	}}})
	require.NoError(t, d.Initialise(context.Background()))

	_, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "burn"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_Invoke_PublishesItemsToInvokingClient(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{okAction("greet", KindCommand,
		ToolMessageItem{ToolID: "t1", Message: "done"},
		SpeakItem{Message: "hello"},
	)}})
	require.NoError(t, d.Initialise(context.Background()))

	var kitchen, lounge []ResultItem
	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error {
		kitchen = append(kitchen, item)
		return nil
	}))
	require.NoError(t, d.Subscribe("lounge", func(item ResultItem) error {
		lounge = append(lounge, item)
		return nil
	}))

	_, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "greet", ToolID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, []ResultItem{
		ToolMessageItem{ToolID: "t1", Message: "done"},
		SpeakItem{Message: "hello"},
	}, kitchen)
	assert.Empty(t, lounge)
}

func TestDispatcher_Invoke_FailedResultPublishesNothing(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{{
		ID:   "flaky",
		Kind: KindCommand,
		Handler: func(ctx context.Context, inv Invocation) (*Result, error) {
			return &Result{Success: false, Items: []ResultItem{SpeakItem{Message: "no"}}}, nil
		},
	}}})
	require.NoError(t, d.Initialise(context.Background()))

	var got []ResultItem
	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error {
		got = append(got, item)
		return nil
	}))

	res, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "flaky"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Empty(t, got)
	assert.Zero(t, d.PendingSchedules())
}

func TestDispatcher_Invoke_EvaluateCollapsesToOne(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Register(&stubAdapter{actions: []Action{okAction("weather", KindCommand,
		EvaluateItem{},
		ToolMessageItem{ToolID: "t1", Message: "21 degrees"},
		EvaluateItem{},
	)}})
	require.NoError(t, d.Initialise(context.Background()))

	var got []ResultItem
	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error {
		got = append(got, item)
		return nil
	}))

	_, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "weather", ToolID: "t1"})
	require.NoError(t, err)

	// One evaluate only, and it trails every other item.
	assert.Equal(t, []ResultItem{
		ToolMessageItem{ToolID: "t1", Message: "21 degrees"},
		EvaluateItem{},
	}, got)
}

func TestDispatcher_Invoke_ScheduleQueuedAndPublished(t *testing.T) {
	d := NewDispatcher(testLogger(), WithClock(func() int64 { return 100 }))
	d.Register(&stubAdapter{actions: []Action{okAction("set_timer", KindCommand,
		ScheduleItem{ExecuteAt: 160, ActionID: "run_timer"},
	)}})
	require.NoError(t, d.Initialise(context.Background()))

	var got []ResultItem
	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error {
		got = append(got, item)
		return nil
	}))

	_, err := d.Invoke(context.Background(), "kitchen", Invocation{ID: "set_timer"})
	require.NoError(t, err)

	assert.Equal(t, 1, d.PendingSchedules())
	assert.Equal(t, []ResultItem{ScheduleItem{ExecuteAt: 160, ActionID: "run_timer"}}, got)
}
