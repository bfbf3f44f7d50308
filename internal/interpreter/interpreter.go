// Package interpreter wraps a tool-calling chat conversation with the
// language model. Each Interpreter owns one session's transcript and is
// used exclusively by a single session handler.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/gerald/internal/action"
)

var (
	// ErrAlreadyStarted is returned by Start on a started interpreter and
	// by AddAction once the action set is frozen.
	ErrAlreadyStarted = errors.New("interpreter already started")

	// ErrEnded is returned by operations on an ended interpreter.
	ErrEnded = errors.New("interpreter already ended")

	// ErrUnexpectedModelResponse is returned when the model reply carries
	// neither text content nor tool calls. It is fatal to that Process
	// call only; the session stays alive and the caller decides whether
	// to try again.
	ErrUnexpectedModelResponse = errors.New("model response carried neither content nor tool calls")
)

const preamble = "You are a mean and rude smart home device. You will help me with my smart home, " +
	"but have a smart-ass attitude while you do it. Also try keep the responses relatively short, " +
	"a sentence, or two max."

// ChatClient is the slice of the OpenAI client Process needs. The real
// *openai.Client satisfies it; tests inject a mock.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Outcome is the result of one Process call: either a text reply or a
// batch of tool invocations, never both.
type Outcome interface {
	outcome()
}

// TextOutcome is a free-text reply to speak back to the user.
type TextOutcome struct {
	Text string
}

// ActionOutcome is a batch of tool invocations the model requested.
type ActionOutcome struct {
	Actions []ToolCall
}

// ToolCall is one model-issued action request.
type ToolCall struct {
	ID         string
	Parameters map[string]any
	ToolID     string
}

func (TextOutcome) outcome()   {}
func (ActionOutcome) outcome() {}

// Interpreter is the conversation state machine: created, then started,
// then ended. Actions are frozen at start; the transcript is frozen at end.
type Interpreter struct {
	client ChatClient
	model  string

	actions []action.Action

	createdAt  int64
	startedAt  int64
	endedAt    int64
	lastSeenAt int64

	messages []openai.ChatCompletionMessage
}

// New creates an interpreter in the created state.
func New(client ChatClient, model string) *Interpreter {
	now := time.Now().Unix()
	return &Interpreter{
		client:     client,
		model:      model,
		createdAt:  now,
		lastSeenAt: now,
	}
}

// CreatedTime returns the creation epoch.
func (i *Interpreter) CreatedTime() int64 { return i.createdAt }

// StartedTime returns the start epoch, 0 if not started.
func (i *Interpreter) StartedTime() int64 { return i.startedAt }

// EndedTime returns the end epoch, 0 if not ended.
func (i *Interpreter) EndedTime() int64 { return i.endedAt }

// LastSeenTime returns the epoch of the last transcript activity.
func (i *Interpreter) LastSeenTime() int64 { return i.lastSeenAt }

// AddAction registers a command the model may call. Legal only before
// Start; the action set is frozen for the session's lifetime.
func (i *Interpreter) AddAction(a action.Action) error {
	if i.endedAt > 0 {
		return ErrEnded
	}
	if i.startedAt > 0 {
		return ErrAlreadyStarted
	}
	i.actions = append(i.actions, a)
	return nil
}

// Start seeds the transcript with the fixed preamble and transitions to
// started. Calling it twice is an error.
func (i *Interpreter) Start() error {
	if i.endedAt > 0 {
		return ErrEnded
	}
	if i.startedAt > 0 {
		return ErrAlreadyStarted
	}

	now := time.Now().Unix()
	i.startedAt = now
	i.lastSeenAt = now

	i.messages = append(i.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: preamble,
	})
	return nil
}

// End transitions to ended and freezes the transcript. Idempotent.
func (i *Interpreter) End() {
	i.lastSeenAt = time.Now().Unix()
	if i.endedAt > 0 {
		return
	}
	i.endedAt = time.Now().Unix()
}

// AddUserMessage appends a user message to the transcript.
func (i *Interpreter) AddUserMessage(content string) error {
	return i.append(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})
}

// AddAssistantMessage appends an assistant message to the transcript.
func (i *Interpreter) AddAssistantMessage(content string) error {
	return i.append(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	})
}

// AddToolMessage appends a tool message correlated to the tool call that
// produced it.
func (i *Interpreter) AddToolMessage(toolID, content string) error {
	return i.append(openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		ToolCallID: toolID,
	})
}

func (i *Interpreter) append(msg openai.ChatCompletionMessage) error {
	if i.endedAt > 0 {
		return ErrEnded
	}
	i.messages = append(i.messages, msg)
	i.lastSeenAt = time.Now().Unix()
	return nil
}

// Process sends the transcript and tool schema to the model and appends
// the reply. It returns a TextOutcome or an ActionOutcome; a reply with
// neither is ErrUnexpectedModelResponse.
func (i *Interpreter) Process(ctx context.Context) (Outcome, error) {
	if i.endedAt > 0 {
		return nil, ErrEnded
	}

	req := openai.ChatCompletionRequest{
		Model:    i.model,
		Messages: i.messages,
	}
	if len(i.actions) > 0 {
		req.Tools = buildTools(i.actions)
	}

	resp, err := i.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrUnexpectedModelResponse)
	}

	msg := resp.Choices[0].Message
	i.messages = append(i.messages, msg)
	i.lastSeenAt = time.Now().Unix()

	if msg.Content != "" {
		return TextOutcome{Text: msg.Content}, nil
	}

	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			var params map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &params); err != nil {
				return nil, fmt.Errorf("parsing arguments for tool %s: %w", tc.Function.Name, err)
			}
			calls = append(calls, ToolCall{
				ID:         tc.Function.Name,
				Parameters: params,
				ToolID:     tc.ID,
			})
		}
		return ActionOutcome{Actions: calls}, nil
	}

	return nil, ErrUnexpectedModelResponse
}

// buildTools converts registered commands into the OpenAI function-tool
// schema. The required list holds parameters flagged required; type, enum
// and description pass through verbatim, with type defaulting to string.
func buildTools(actions []action.Action) []openai.Tool {
	tools := make([]openai.Tool, 0, len(actions))
	for _, a := range actions {
		properties := make(map[string]any, len(a.Parameters))
		required := []string{}

		for _, p := range a.Parameters {
			paramType := p.Type
			if paramType == "" {
				paramType = action.TypeString
			}
			prop := map[string]any{
				"type": string(paramType),
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			if p.Description != "" {
				prop["description"] = p.Description
			}
			properties[p.Name] = prop

			if p.Required {
				required = append(required, p.Name)
			}
		}

		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        a.ID,
				Description: a.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}
