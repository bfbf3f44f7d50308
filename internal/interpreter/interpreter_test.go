package interpreter

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/gerald/internal/action"
)

// mockChatClient replays a scripted sequence of responses and records every
// request it received.
type mockChatClient struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (m *mockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return openai.ChatCompletionResponse{}, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return openai.ChatCompletionResponse{}, errors.New("mock: no scripted response")
	}
	return m.responses[idx], nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func toolResponse(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				ToolCalls: calls,
			},
		}},
	}
}

func TestStart_SeedsPreamble(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{textResponse("what now")}}
	i := New(client, "gpt-4o-mini")

	require.NoError(t, i.Start())
	assert.NotZero(t, i.StartedTime())

	_, err := i.Process(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, client.requests)
	first := client.requests[0].Messages[0]
	assert.Equal(t, openai.ChatMessageRoleUser, first.Role)
	assert.Contains(t, first.Content, "smart home")
}

func TestStart_Twice(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	require.NoError(t, i.Start())
	assert.ErrorIs(t, i.Start(), ErrAlreadyStarted)
}

func TestStart_AfterEnd(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	i.End()
	assert.ErrorIs(t, i.Start(), ErrEnded)
}

func TestEnd_Idempotent(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	require.NoError(t, i.Start())

	i.End()
	ended := i.EndedTime()
	require.NotZero(t, ended)

	i.End()
	assert.Equal(t, ended, i.EndedTime())
}

func TestAddAction_AfterStart(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	require.NoError(t, i.AddAction(action.Action{ID: "set_timer"}))
	require.NoError(t, i.Start())
	assert.ErrorIs(t, i.AddAction(action.Action{ID: "too_late"}), ErrAlreadyStarted)
}

func TestAddMessages_AfterEnd(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	require.NoError(t, i.Start())
	i.End()

	assert.ErrorIs(t, i.AddUserMessage("hello"), ErrEnded)
	assert.ErrorIs(t, i.AddAssistantMessage("hi"), ErrEnded)
	assert.ErrorIs(t, i.AddToolMessage("t1", "done"), ErrEnded)
}

func TestProcess_AfterEnd(t *testing.T) {
	i := New(&mockChatClient{}, "gpt-4o-mini")
	require.NoError(t, i.Start())
	i.End()

	_, err := i.Process(context.Background())
	assert.ErrorIs(t, err, ErrEnded)
}

func TestProcess_TextOutcome(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{textResponse("lights are on, happy now?")}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())
	require.NoError(t, i.AddUserMessage("turn on the lights"))

	out, err := i.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TextOutcome{Text: "lights are on, happy now?"}, out)
}

func TestProcess_ActionOutcome(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{toolResponse(
		openai.ToolCall{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "set_timer",
				Arguments: `{"duration": 300}`,
			},
		},
		openai.ToolCall{
			ID:   "call_2",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "turn_lights_off",
				Arguments: `{}`,
			},
		},
	)}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())
	require.NoError(t, i.AddUserMessage("set a timer and kill the lights"))

	out, err := i.Process(context.Background())
	require.NoError(t, err)

	actions, ok := out.(ActionOutcome)
	require.True(t, ok)
	require.Len(t, actions.Actions, 2)
	assert.Equal(t, ToolCall{ID: "set_timer", Parameters: map[string]any{"duration": float64(300)}, ToolID: "call_1"}, actions.Actions[0])
	assert.Equal(t, ToolCall{ID: "turn_lights_off", Parameters: map[string]any{}, ToolID: "call_2"}, actions.Actions[1])
}

func TestProcess_EmptyReply(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{}}},
	}}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())

	_, err := i.Process(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedModelResponse)
}

func TestProcess_NoChoices(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{{}}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())

	_, err := i.Process(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedModelResponse)
}

func TestProcess_ClientError(t *testing.T) {
	boom := errors.New("rate limited")
	client := &mockChatClient{errs: []error{boom}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())

	_, err := i.Process(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestProcess_MalformedToolArguments(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{toolResponse(
		openai.ToolCall{
			ID:       "call_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "set_timer", Arguments: `{not json`},
		},
	)}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())

	_, err := i.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set_timer")
}

func TestProcess_TranscriptAccumulates(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{
		textResponse("no."),
		textResponse("fine, done."),
	}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())
	require.NoError(t, i.AddUserMessage("open the blinds"))

	_, err := i.Process(context.Background())
	require.NoError(t, err)

	require.NoError(t, i.AddUserMessage("please"))
	_, err = i.Process(context.Background())
	require.NoError(t, err)

	// preamble, user, assistant, user
	second := client.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, openai.ChatMessageRoleAssistant, second[2].Role)
	assert.Equal(t, "no.", second[2].Content)
	assert.Equal(t, "please", second[3].Content)
}

func TestBuildTools_Schema(t *testing.T) {
	tools := buildTools([]action.Action{{
		ID:          "set_timer",
		Kind:        action.KindCommand,
		Description: "Sets a timer.",
		Parameters: []action.Parameter{
			{Name: "duration", Type: action.TypeNumber, Required: true, Description: "Seconds until the timer fires."},
			{Name: "label"},
			{Name: "location", Enum: []string{"kitchen", "lounge"}},
		},
	}})

	require.Len(t, tools, 1)
	tool := tools[0]
	assert.Equal(t, openai.ToolTypeFunction, tool.Type)
	require.NotNil(t, tool.Function)
	assert.Equal(t, "set_timer", tool.Function.Name)
	assert.Equal(t, "Sets a timer.", tool.Function.Description)

	schema, ok := tool.Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"duration"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	duration := props["duration"].(map[string]any)
	assert.Equal(t, "number", duration["type"])
	assert.Equal(t, "Seconds until the timer fires.", duration["description"])

	label := props["label"].(map[string]any)
	assert.Equal(t, "string", label["type"])
	assert.NotContains(t, label, "enum")

	location := props["location"].(map[string]any)
	assert.Equal(t, []string{"kitchen", "lounge"}, location["enum"])
}

func TestProcess_SendsToolSchemaOnlyWhenActionsRegistered(t *testing.T) {
	client := &mockChatClient{responses: []openai.ChatCompletionResponse{
		textResponse("a"),
	}}
	i := New(client, "gpt-4o-mini")
	require.NoError(t, i.Start())

	_, err := i.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, client.requests[0].Tools)
}
